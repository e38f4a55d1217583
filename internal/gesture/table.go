package gesture

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"jordanella.com/profile-swiper/internal/apperr"
)

// ActionType selects how a gesture is injected
type ActionType string

const (
	ActionTap   ActionType = "tap"
	ActionSwipe ActionType = "swipe"
)

// DefaultJitter is the per-axis tap randomization in pixels
const DefaultJitter = 20

// Action is the device input bound to a gesture kind
type Action struct {
	Kind       Kind
	Type       ActionType
	X, Y       int
	X2, Y2     int // Swipe end
	DurationMs int
	Jitter     int // Max offset per axis for taps
}

// Validate checks a single action
func (a Action) Validate() error {
	switch a.Type {
	case ActionTap:
	case ActionSwipe:
		if a.DurationMs <= 0 {
			return apperr.Config("gesture.Validate", "%s: swipe duration must be > 0", a.Kind)
		}
		if a.X2 < 0 || a.Y2 < 0 {
			return apperr.Config("gesture.Validate", "%s: negative swipe end (%d,%d)", a.Kind, a.X2, a.Y2)
		}
	default:
		return apperr.Config("gesture.Validate", "%s: unknown action type %q", a.Kind, a.Type)
	}
	if a.X < 0 || a.Y < 0 {
		return apperr.Config("gesture.Validate", "%s: negative coordinates (%d,%d)", a.Kind, a.X, a.Y)
	}
	if a.Jitter < 0 {
		return apperr.Config("gesture.Validate", "%s: negative jitter %d", a.Kind, a.Jitter)
	}
	return nil
}

// Table maps gesture kinds to device actions
type Table map[Kind]Action

// DefaultTable returns the coordinates for a 1080x1920 portrait screen
func DefaultTable() Table {
	return Table{
		NextImage: {Kind: NextImage, Type: ActionTap, X: 801, Y: 402, Jitter: DefaultJitter},
		PrevImage: {Kind: PrevImage, Type: ActionTap, X: 203, Y: 405, Jitter: DefaultJitter},
		Like:      {Kind: Like, Type: ActionTap, X: 685, Y: 1775, Jitter: DefaultJitter},
		Dislike:   {Kind: Dislike, Type: ActionTap, X: 400, Y: 1771, Jitter: DefaultJitter},
		SwipeUp:   {Kind: SwipeUp, Type: ActionSwipe, X: 500, Y: 1500, X2: 500, Y2: 500, DurationMs: 300},
	}
}

// Validate checks every action and that the kinds the walker and session
// depend on are bound
func (t Table) Validate() error {
	for kind, action := range t {
		if action.Kind != kind {
			return apperr.Config("gesture.Validate", "action for %s is labelled %s", kind, action.Kind)
		}
		if err := action.Validate(); err != nil {
			return err
		}
	}
	for _, required := range []Kind{NextImage, Like, Dislike} {
		if _, ok := t[required]; !ok {
			return apperr.Config("gesture.Validate", "missing required gesture %s", required)
		}
	}
	return nil
}

// CheckBounds reports a ConfigurationError for the first action that can
// land outside a width x height screen, jitter included
func (t Table) CheckBounds(width, height int) error {
	for _, kind := range Kinds() {
		a, ok := t[kind]
		if !ok {
			continue
		}
		xs, ys := []int{a.X + a.Jitter}, []int{a.Y + a.Jitter}
		if a.Type == ActionSwipe {
			xs, ys = []int{a.X, a.X2}, []int{a.Y, a.Y2}
		}
		for i := range xs {
			if xs[i] >= width || ys[i] >= height {
				return apperr.Config("gesture.CheckBounds", "%s does not fit a %dx%d screen", a, width, height)
			}
		}
	}
	return nil
}

// tableFile is the YAML layout of a gesture table
type tableFile struct {
	Gestures []entry `yaml:"gestures"`
}

// entry is one gesture override. Unset fields keep the default binding.
type entry struct {
	Name       string      `yaml:"name"`
	Type       *ActionType `yaml:"type"`
	X          *int        `yaml:"x"`
	Y          *int        `yaml:"y"`
	X2         *int        `yaml:"x2"`
	Y2         *int        `yaml:"y2"`
	DurationMs *int        `yaml:"duration_ms"`
	Jitter     *int        `yaml:"jitter"`
}

// LoadTable reads a YAML gesture file. Entries override the defaults, so a
// file only needs to list the gestures and fields that differ.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.KindConfig, "gesture.LoadTable", "read %s", path)
	}
	return ParseTable(data)
}

// ParseTable decodes YAML gesture data over the default table. Each entry
// must name its gesture; the fields it sets are merged onto that gesture's
// default action.
func ParseTable(data []byte) (Table, error) {
	const op = "gesture.ParseTable"

	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperr.Wrap(err, apperr.KindConfig, op, "unmarshal gesture YAML")
	}

	table := DefaultTable()
	seen := make(map[Kind]bool)
	for i, e := range file.Gestures {
		if e.Name == "" {
			return nil, apperr.Config(op, "gesture %d: name cannot be empty", i+1)
		}
		kind, err := ParseKind(e.Name)
		if err != nil {
			return nil, err
		}
		if seen[kind] {
			return nil, apperr.Config(op, "gesture %d: duplicate entry for %s", i+1, kind)
		}
		seen[kind] = true

		action, ok := table[kind]
		if !ok {
			action = Action{Kind: kind, Type: ActionTap}
		}
		table[kind] = e.merge(action)
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func (e entry) merge(a Action) Action {
	set := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	if e.Type != nil {
		a.Type = *e.Type
	}
	set(&a.X, e.X)
	set(&a.Y, e.Y)
	set(&a.X2, e.X2)
	set(&a.Y2, e.Y2)
	set(&a.DurationMs, e.DurationMs)
	set(&a.Jitter, e.Jitter)
	return a
}

func (a Action) String() string {
	if a.Type == ActionSwipe {
		return fmt.Sprintf("%s swipe (%d,%d)->(%d,%d) %dms", a.Kind, a.X, a.Y, a.X2, a.Y2, a.DurationMs)
	}
	return fmt.Sprintf("%s tap (%d,%d)±%d", a.Kind, a.X, a.Y, a.Jitter)
}
