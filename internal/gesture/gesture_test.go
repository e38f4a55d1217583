package gesture

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"jordanella.com/profile-swiper/internal/apperr"
)

type call struct {
	swipe              bool
	x, y, x2, y2, dur int
}

// mockDevice records input events
type mockDevice struct {
	calls []call
	err   error
}

func (m *mockDevice) Tap(ctx context.Context, x, y int) error {
	m.calls = append(m.calls, call{x: x, y: y})
	return m.err
}

func (m *mockDevice) Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error {
	m.calls = append(m.calls, call{swipe: true, x: x1, y: y1, x2: x2, y2: y2, dur: durationMs})
	return m.err
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", k, err)
		}
		if got != k {
			t.Errorf("ParseKind(%q) = %v", k, got)
		}
	}

	if _, err := ParseKind("superlike"); !apperr.IsConfig(err) {
		t.Errorf("unknown gesture should be a configuration error, got %v", err)
	}
}

func TestDefaultTableIsValid(t *testing.T) {
	if err := DefaultTable().Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}
}

func TestParseTableOverridesDefaults(t *testing.T) {
	data := []byte(`
gestures:
  - name: like
    x: 700
    y: 1800
    jitter: 5
  - name: swipe_up
    type: swipe
    x: 540
    y: 1600
    x2: 540
    y2: 400
    duration_ms: 250
`)
	table, err := ParseTable(data)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}

	like := table[Like]
	if like.Type != ActionTap || like.X != 700 || like.Y != 1800 || like.Jitter != 5 {
		t.Errorf("like = %+v", like)
	}
	if swipe := table[SwipeUp]; swipe.DurationMs != 250 || swipe.Y2 != 400 {
		t.Errorf("swipe_up = %+v", swipe)
	}
	// Untouched entries keep their defaults
	if table[NextImage] != DefaultTable()[NextImage] {
		t.Errorf("next_image changed: %+v", table[NextImage])
	}
}

func TestParseTableMergesOntoDefaults(t *testing.T) {
	table, err := ParseTable([]byte("gestures:\n  - name: dislike\n    x: 380\n"))
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}

	want := DefaultTable()[Dislike]
	want.X = 380
	if got := table[Dislike]; got != want {
		t.Errorf("dislike = %+v, want %+v", got, want)
	}
	if table[Dislike].Jitter != DefaultJitter {
		t.Errorf("jitter dropped to %d", table[Dislike].Jitter)
	}
	if table[NextImage] != DefaultTable()[NextImage] {
		t.Errorf("next_image changed: %+v", table[NextImage])
	}
}

func TestParseTableRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown gesture", "gestures:\n  - name: superlike\n    x: 1\n    y: 1\n"},
		{"unknown type", "gestures:\n  - name: like\n    type: pinch\n"},
		{"missing name", "gestures:\n  - x: 5\n    y: 5\n"},
		{"swipe without duration", "gestures:\n  - name: like\n    type: swipe\n    x2: 1\n    y2: 1\n"},
		{"duplicate", "gestures:\n  - name: like\n  - name: like\n"},
		{"negative jitter", "gestures:\n  - name: like\n    jitter: -1\n"},
		{"not yaml", "gestures: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTable([]byte(tt.data))
			if !apperr.IsConfig(err) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestCheckBounds(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		ok   bool
	}{
		{"portrait 1080p", 1080, 1920, true},
		{"jitter past the edge", 1080, 1790, false},
		{"720p", 720, 1280, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DefaultTable().CheckBounds(tt.w, tt.h)
			if tt.ok && err != nil {
				t.Errorf("CheckBounds: %v", err)
			}
			if !tt.ok && !apperr.IsConfig(err) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestPerformTapWithinJitter(t *testing.T) {
	dev := &mockDevice{}
	p, err := NewPerformer(dev, DefaultTable(), rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("NewPerformer: %v", err)
	}

	for i := 0; i < 50; i++ {
		if err := p.Perform(context.Background(), NextImage); err != nil {
			t.Fatalf("Perform: %v", err)
		}
	}

	for _, c := range dev.calls {
		if c.swipe {
			t.Fatal("expected tap")
		}
		if c.x < 801-DefaultJitter || c.x > 801+DefaultJitter || c.y < 402-DefaultJitter || c.y > 402+DefaultJitter {
			t.Errorf("tap (%d,%d) outside jitter box", c.x, c.y)
		}
	}
}

func TestPerformSwipe(t *testing.T) {
	dev := &mockDevice{}
	p, err := NewPerformer(dev, DefaultTable(), nil)
	if err != nil {
		t.Fatalf("NewPerformer: %v", err)
	}
	if err := p.Perform(context.Background(), SwipeUp); err != nil {
		t.Fatalf("Perform: %v", err)
	}

	want := call{swipe: true, x: 500, y: 1500, x2: 500, y2: 500, dur: 300}
	if len(dev.calls) != 1 || dev.calls[0] != want {
		t.Errorf("calls = %+v, want %+v", dev.calls, want)
	}
}

func TestPerformUnboundKind(t *testing.T) {
	table := DefaultTable()
	delete(table, PrevImage)
	p, err := NewPerformer(&mockDevice{}, table, nil)
	if err != nil {
		t.Fatalf("NewPerformer: %v", err)
	}
	if err := p.Perform(context.Background(), PrevImage); !apperr.IsConfig(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestPerformPropagatesDeviceError(t *testing.T) {
	devErr := apperr.Device("adb.Shell", "offline")
	p, err := NewPerformer(&mockDevice{err: devErr}, DefaultTable(), nil)
	if err != nil {
		t.Fatalf("NewPerformer: %v", err)
	}
	if err := p.Perform(context.Background(), Like); !errors.Is(err, devErr) {
		t.Errorf("got %v, want %v", err, devErr)
	}
}

func TestPerformHonoursCancellation(t *testing.T) {
	dev := &mockDevice{}
	p, _ := NewPerformer(dev, DefaultTable(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Perform(ctx, Like); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if len(dev.calls) != 0 {
		t.Errorf("device called after cancellation: %+v", dev.calls)
	}
}
