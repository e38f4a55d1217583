package gesture

import (
	"strings"

	"jordanella.com/profile-swiper/internal/apperr"
)

// Kind is a named input gesture
type Kind int

const (
	NextImage Kind = iota
	PrevImage
	Like
	Dislike
	SwipeUp
)

var kindNames = map[Kind]string{
	NextImage: "next_image",
	PrevImage: "prev_image",
	Like:      "like",
	Dislike:   "dislike",
	SwipeUp:   "swipe_up",
}

// Kinds lists every gesture kind in declaration order
func Kinds() []Kind {
	return []Kind{NextImage, PrevImage, Like, Dislike, SwipeUp}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind maps a gesture name to its Kind. Unknown names are a
// ConfigurationError.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, apperr.Config("gesture.ParseKind", "undefined gesture %q", name)
}
