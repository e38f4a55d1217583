package replay

import (
	"context"
	"fmt"
	"sync"
)

// Device accepts gestures without a screen behind it and keeps a log of them
type Device struct {
	mu     sync.Mutex
	events []string
}

// NewDevice creates an empty gesture log
func NewDevice() *Device {
	return &Device{}
}

func (d *Device) Tap(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.record(fmt.Sprintf("tap %d %d", x, y))
	return nil
}

func (d *Device) Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.record(fmt.Sprintf("swipe %d %d %d %d %d", x1, y1, x2, y2, durationMs))
	return nil
}

func (d *Device) record(event string) {
	d.mu.Lock()
	d.events = append(d.events, event)
	d.mu.Unlock()
}

// Events returns a copy of the recorded gestures
func (d *Device) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}
