// Package replay stands in for a device with screenshots recorded on disk.
package replay

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"jordanella.com/profile-swiper/internal/apperr"
	"jordanella.com/profile-swiper/internal/cv"
	"jordanella.com/profile-swiper/internal/logging"
)

var imageExts = map[string]bool{
	".png":  true,
	".bmp":  true,
	".webp": true,
	".jpg":  true,
	".jpeg": true,
}

// Source returns the images of a directory in lexical order, one per capture
type Source struct {
	mu     sync.Mutex
	files  []string
	next   int
	loop   bool
	logger *logging.Logger
}

// NewSource lists the images in dir. An empty directory is an InputError.
func NewSource(dir string) (*Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.KindInput, "replay.NewSource", "read %s", dir)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, apperr.Input("replay.NewSource", "no images in %s", dir)
	}
	sort.Strings(files)

	return &Source{files: files, logger: logging.NewLogger("Replay")}, nil
}

// Loop makes the source wrap around instead of running dry
func (s *Source) Loop() *Source {
	s.loop = true
	return s
}

// Len returns the number of recorded frames
func (s *Source) Len() int {
	return len(s.files)
}

// Remaining returns how many captures are left before exhaustion
func (s *Source) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files) - s.next
}

// Capture decodes the next recorded image. Running out of images is a
// DeviceError, the same as a device that stopped answering.
func (s *Source) Capture(ctx context.Context) (*cv.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.next >= len(s.files) {
		if !s.loop {
			s.mu.Unlock()
			return nil, apperr.Device("replay.Capture", "no more recorded frames")
		}
		s.next = 0
	}
	path := s.files[s.next]
	s.next++
	seq := s.next
	s.mu.Unlock()

	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	s.logger.DebugWithContext("Replayed frame", map[string]interface{}{"file": filepath.Base(path), "seq": seq})
	return cv.NewFrame(img, seq, time.Now())
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.KindInput, "replay.decode", "open %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.KindInput, "replay.decode", "decode %s", path)
	}
	return img, nil
}
