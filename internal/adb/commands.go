package adb

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"
	"time"

	"jordanella.com/profile-swiper/internal/apperr"
	"jordanella.com/profile-swiper/internal/cv"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// Tap performs a tap at the specified device coordinates
func (c *Controller) Tap(ctx context.Context, x, y int) error {
	_, err := c.Shell(ctx, fmt.Sprintf("input tap %d %d", x, y))
	return err
}

// Swipe performs a swipe gesture
func (c *Controller) Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error {
	_, err := c.Shell(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, durationMs))
	return err
}

// Shell executes a shell command and returns trimmed output
func (c *Controller) Shell(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	output, err := c.exec(ctx, c.args("shell", command)...)
	if err != nil {
		return "", apperr.Wrapf(err, apperr.KindDevice, "adb.Shell", "%q", command)
	}
	return strings.TrimSpace(string(output)), nil
}

// Screencap returns the raw PNG bytes of the current screen
func (c *Controller) Screencap(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	output, err := c.exec(ctx, c.args("exec-out", "screencap", "-p")...)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindDevice, "adb.Screencap", "capture screen")
	}
	if len(output) == 0 {
		return nil, apperr.Device("adb.Screencap", "empty screencap output")
	}
	return fixLineEndings(output), nil
}

// fixLineEndings undoes the \n -> \r\n translation some older adb servers
// apply to binary shell output
func fixLineEndings(data []byte) []byte {
	if bytes.HasPrefix(data, pngMagic) {
		return data
	}
	fixed := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if bytes.HasPrefix(fixed, pngMagic) {
		return fixed
	}
	return data
}

// Capture takes a screenshot and decodes it into a frame
func (c *Controller) Capture(ctx context.Context) (*cv.Frame, error) {
	data, err := c.Screencap(ctx)
	if err != nil {
		return nil, err
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindDevice, "adb.Capture", "decode screencap")
	}

	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	return cv.NewFrame(img, seq, time.Now())
}

// WindowSize returns the current screen size
func (c *Controller) WindowSize(ctx context.Context) (width, height int, err error) {
	output, err := c.Shell(ctx, "wm size")
	if err != nil {
		return 0, 0, err
	}
	return parseWindowSize(output)
}

// parseWindowSize reads "Physical size: WxH", preferring an override line
// when present
func parseWindowSize(output string) (int, int, error) {
	var w, h int
	found := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		var lw, lh int
		if _, err := fmt.Sscanf(line, "Override size: %dx%d", &lw, &lh); err == nil {
			return lw, lh, nil
		}
		if _, err := fmt.Sscanf(line, "Physical size: %dx%d", &lw, &lh); err == nil {
			w, h, found = lw, lh, true
		}
	}
	if !found {
		return 0, 0, apperr.Device("adb.WindowSize", "failed to parse window size: %s", output)
	}
	return w, h, nil
}
