package adb

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"strings"
	"testing"
	"time"

	"jordanella.com/profile-swiper/internal/apperr"
)

// fakeADB records invocations and replies from a table keyed by the joined
// argument list
type fakeADB struct {
	calls   [][]string
	replies map[string][]byte
	fail    map[string]error
}

func newFakeADB() *fakeADB {
	return &fakeADB{replies: map[string][]byte{}, fail: map[string]error{}}
}

func (f *fakeADB) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, args)
	key := strings.Join(args, " ")
	if err, ok := f.fail[key]; ok {
		return nil, err
	}
	return f.replies[key], nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestTapAndSwipeCommands(t *testing.T) {
	fake := newFakeADB()
	ctrl := NewController("adb", "emulator-5554").WithRunner(fake.run)
	ctx := context.Background()

	if err := ctrl.Tap(ctx, 801, 402); err != nil {
		t.Fatalf("Tap: %v", err)
	}
	if err := ctrl.Swipe(ctx, 500, 1500, 500, 500, 300); err != nil {
		t.Fatalf("Swipe: %v", err)
	}

	want := [][]string{
		{"-s", "emulator-5554", "shell", "input tap 801 402"},
		{"-s", "emulator-5554", "shell", "input swipe 500 1500 500 500 300"},
	}
	if !reflect.DeepEqual(fake.calls, want) {
		t.Errorf("calls = %q, want %q", fake.calls, want)
	}
}

func TestShellFailureIsDeviceError(t *testing.T) {
	fake := newFakeADB()
	fake.fail["shell input tap 1 2"] = errors.New("exit status 1")
	ctrl := NewController("adb", "").WithRunner(fake.run)

	err := ctrl.Tap(context.Background(), 1, 2)
	if !apperr.IsDevice(err) {
		t.Fatalf("expected device error, got %v", err)
	}
}

func TestCaptureDecodesScreencap(t *testing.T) {
	fake := newFakeADB()
	fake.replies["exec-out screencap -p"] = pngBytes(t, 8, 6)
	ctrl := NewController("adb", "").WithRunner(fake.run)

	for want := 1; want <= 2; want++ {
		frame, err := ctrl.Capture(context.Background())
		if err != nil {
			t.Fatalf("Capture: %v", err)
		}
		if frame.Width() != 8 || frame.Height() != 6 {
			t.Errorf("frame size %dx%d, want 8x6", frame.Width(), frame.Height())
		}
		if frame.Seq != want {
			t.Errorf("Seq = %d, want %d", frame.Seq, want)
		}
	}
}

func TestCaptureUndoesCRLFTranslation(t *testing.T) {
	raw := pngBytes(t, 4, 4)
	mangled := bytes.ReplaceAll(raw, []byte("\n"), []byte("\r\n"))

	fake := newFakeADB()
	fake.replies["exec-out screencap -p"] = mangled
	ctrl := NewController("adb", "").WithRunner(fake.run)

	if _, err := ctrl.Capture(context.Background()); err != nil {
		t.Fatalf("Capture: %v", err)
	}
}

func TestCaptureRejectsGarbage(t *testing.T) {
	tests := []struct {
		name  string
		reply []byte
	}{
		{"empty", nil},
		{"not png", []byte("error: device offline")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeADB()
			fake.replies["exec-out screencap -p"] = tt.reply
			ctrl := NewController("adb", "").WithRunner(fake.run)

			_, err := ctrl.Capture(context.Background())
			if !apperr.IsDevice(err) {
				t.Errorf("expected device error, got %v", err)
			}
		})
	}
}

func TestConnectNetworkDevice(t *testing.T) {
	fake := newFakeADB()
	fake.replies["connect 127.0.0.1:5555"] = []byte("connected to 127.0.0.1:5555\n")
	ctrl := NewController("adb", "127.0.0.1:5555").WithRunner(fake.run)

	if err := ctrl.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !ctrl.IsConnected() {
		t.Error("expected connected")
	}

	fake.replies["connect 127.0.0.1:5556"] = []byte("failed to connect to 127.0.0.1:5556\n")
	other := NewController("adb", "127.0.0.1:5556").WithRunner(fake.run)
	if err := other.Connect(context.Background()); err == nil {
		// "failed to connect" still contains "connect" but not "connected"
		t.Error("expected connect failure")
	}
}

func TestConnectWithoutNetworkConnect(t *testing.T) {
	fake := newFakeADB()
	ctrl := NewController("adb", "127.0.0.1:5555").WithRunner(fake.run).WithNetworkConnect(false)

	if err := ctrl.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if len(fake.calls) != 1 || strings.Join(fake.calls[0], " ") != "-s 127.0.0.1:5555 get-state" {
		t.Errorf("calls = %v", fake.calls)
	}
}

func TestParseDevices(t *testing.T) {
	out := "* daemon started successfully\nList of devices attached\nemulator-5554\tdevice\n127.0.0.1:5555\toffline\n\n"
	got := parseDevices(out)
	want := []Device{{Serial: "emulator-5554", State: "device"}, {Serial: "127.0.0.1:5555", State: "offline"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseDevices = %+v, want %+v", got, want)
	}
}

func TestParseWindowSize(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		w, h    int
		wantErr bool
	}{
		{"physical", "Physical size: 1080x1920", 1080, 1920, false},
		{"override wins", "Physical size: 1080x1920\nOverride size: 720x1280", 720, 1280, false},
		{"garbage", "wm: not found", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := parseWindowSize(tt.output)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if w != tt.w || h != tt.h {
				t.Errorf("got %dx%d, want %dx%d", w, h, tt.w, tt.h)
			}
		})
	}
}

func TestCommandTimeoutIsDeviceError(t *testing.T) {
	hang := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	ctrl := NewController("adb", "").WithRunner(hang).WithTimeout(10 * time.Millisecond)

	_, err := ctrl.Capture(context.Background())
	if !apperr.IsDevice(err) {
		t.Fatalf("expected device error, got %v", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("timeout leaked a context error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ctrl.Tap(ctx, 1, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("caller cancellation: got %v", err)
	}
}

func TestWindowSize(t *testing.T) {
	fake := newFakeADB()
	fake.replies["-s emulator-5554 shell wm size"] = []byte("Physical size: 1080x2400\n")
	ctrl := NewController("adb", "emulator-5554").WithRunner(fake.run)

	w, h, err := ctrl.WindowSize(context.Background())
	if err != nil {
		t.Fatalf("WindowSize: %v", err)
	}
	if w != 1080 || h != 2400 {
		t.Errorf("got %dx%d, want 1080x2400", w, h)
	}
}
