package cv

import (
	"image"
	"image/color"
	"math/rand/v2"
	"testing"
	"time"
)

// solidFrame builds a w*h frame filled with c
func solidFrame(t *testing.T, w, h int, c color.RGBA) *Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	f, err := NewFrame(img, 0, time.Time{})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	return f
}

// patternTemplate returns a size*size binary noise icon. Noise keeps the
// autocorrelation of shifted windows low, so only exact placements score high.
func patternTemplate(size int, seed uint64) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8(0)
			if rng.IntN(2) == 1 {
				v = 255
			}
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// sceneWithIcons pastes the icon at every position on a flat gray background
func sceneWithIcons(t *testing.T, w, h int, icon *image.RGBA, at ...image.Point) *Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 128, 128, 128, 255
	}
	ib := icon.Bounds()
	for _, p := range at {
		for y := 0; y < ib.Dy(); y++ {
			for x := 0; x < ib.Dx(); x++ {
				img.SetRGBA(p.X+x, p.Y+y, icon.RGBAAt(ib.Min.X+x, ib.Min.Y+y))
			}
		}
	}
	f, err := NewFrame(img, 0, time.Time{})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	return f
}

// recordingSink keeps every crop it receives
type recordingSink struct {
	names  []string
	frames []*Frame
	err    error
}

func (s *recordingSink) PersistCrop(f *Frame, name string) error {
	s.names = append(s.names, name)
	s.frames = append(s.frames, f)
	return s.err
}
