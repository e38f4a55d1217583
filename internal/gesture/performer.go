package gesture

import (
	"context"
	"math/rand/v2"
	"sync"

	"jordanella.com/profile-swiper/internal/apperr"
	"jordanella.com/profile-swiper/internal/logging"
)

// Device injects raw input events
type Device interface {
	Tap(ctx context.Context, x, y int) error
	Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error
}

// Performer turns gesture kinds into device input using a validated table
type Performer struct {
	dev    Device
	table  Table
	mu     sync.Mutex
	rng    *rand.Rand
	logger *logging.Logger
}

// NewPerformer validates the table and binds it to a device. rng may be nil.
func NewPerformer(dev Device, table Table, rng *rand.Rand) (*Performer, error) {
	if dev == nil {
		return nil, apperr.Config("gesture.NewPerformer", "nil device")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Performer{
		dev:    dev,
		table:  table,
		rng:    rng,
		logger: logging.NewLogger("Gesture"),
	}, nil
}

// Perform issues the gesture bound to kind. An unbound kind is a
// ConfigurationError; transport failures come back from the device.
func (p *Performer) Perform(ctx context.Context, kind Kind) error {
	action, ok := p.table[kind]
	if !ok {
		return apperr.Config("gesture.Perform", "no action bound to gesture %s", kind)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	switch action.Type {
	case ActionSwipe:
		p.logger.Debug(action.String())
		return p.dev.Swipe(ctx, action.X, action.Y, action.X2, action.Y2, action.DurationMs)
	default:
		x, y := p.jitter(action.X, action.Y, action.Jitter)
		p.logger.DebugWithContext(action.String(), map[string]interface{}{"x": x, "y": y})
		return p.dev.Tap(ctx, x, y)
	}
}

// jitter offsets a point by up to ±n on each axis, clamped at zero
func (p *Performer) jitter(x, y, n int) (int, int) {
	if n <= 0 {
		return x, y
	}
	p.mu.Lock()
	dx := p.rng.IntN(2*n+1) - n
	dy := p.rng.IntN(2*n+1) - n
	p.mu.Unlock()
	return max(x+dx, 0), max(y+dy, 0)
}
