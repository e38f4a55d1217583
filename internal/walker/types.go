package walker

import (
	"context"
	"time"

	"jordanella.com/profile-swiper/internal/cv"
	"jordanella.com/profile-swiper/internal/gesture"
)

// State of the walker's state machine
type State int

const (
	StateStart State = iota
	StateCaptureFirst
	StateAdvancing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "Start"
	case StateCaptureFirst:
		return "CaptureFirst"
	case StateAdvancing:
		return "Advancing"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Reason a walk ended
type Reason int

const (
	ReasonNone Reason = iota
	LoopedToStart
	DuplicateDetected
	MaxReached
	CaptureLimit
	Aborted
)

func (r Reason) String() string {
	switch r {
	case LoopedToStart:
		return "LoopedToStart"
	case DuplicateDetected:
		return "DuplicateDetected"
	case MaxReached:
		return "MaxReached"
	case CaptureLimit:
		return "CaptureLimit"
	case Aborted:
		return "Aborted"
	default:
		return "None"
	}
}

// Gesturer issues named input gestures on the device
type Gesturer interface {
	Perform(ctx context.Context, kind gesture.Kind) error
}

// Workspace receives every accepted frame. index starts at 1.
type Workspace interface {
	Store(index int, f *cv.Frame) error
}

// Session is the result of one profile traversal
type Session struct {
	Frames   []*cv.Frame // Accepted photo crops, anchor first
	Reason   Reason
	Captures int // Screens captured, including skipped ones
	Skipped  int // Prompt or grayscale screens passed over
	Started  time.Time
	Finished time.Time
}

// Len returns the number of accepted photos
func (s *Session) Len() int {
	return len(s.Frames)
}

// Anchor returns the first accepted frame, or nil
func (s *Session) Anchor() *cv.Frame {
	if len(s.Frames) == 0 {
		return nil
	}
	return s.Frames[0]
}

// Config holds the walk limits and the active skip strategy
type Config struct {
	MaxPhotos     int           // Stop with MaxReached at this many photos
	MaxCaptures   int           // Stop with CaptureLimit after this many captures; 0 disables
	DelayMin      time.Duration // Pacing delay lower bound
	DelayMax      time.Duration // Pacing delay upper bound
	Crop          *cv.Region    // Photo area; nil keeps the full screen
	SkipPrompts   bool
	SkipGrayscale bool
	IconMode      bool // Locate the icon and use it as the prompt landmark
}

// Defaults
const (
	DefaultMaxPhotos   = 5
	DefaultMaxCaptures = 20
	DefaultDelayMin    = 1000 * time.Millisecond
	DefaultDelayMax    = 1500 * time.Millisecond
)

// DefaultConfig returns the walk settings used when none are configured
func DefaultConfig() Config {
	return Config{
		MaxPhotos:   DefaultMaxPhotos,
		MaxCaptures: DefaultMaxCaptures,
		DelayMin:    DefaultDelayMin,
		DelayMax:    DefaultDelayMax,
		SkipPrompts: true,
	}
}
