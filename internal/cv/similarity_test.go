package cv

import (
	"image"
	"image/color"
	"testing"
	"time"

	"jordanella.com/profile-swiper/internal/apperr"
)

func patternFrame(t *testing.T, pattern int) *Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			var c color.RGBA
			switch pattern {
			case 0: // checkerboard
				if (x/8+y/8)%2 == 0 {
					c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
				} else {
					c = color.RGBA{A: 255}
				}
			case 1: // horizontal gradient
				c = color.RGBA{R: uint8(x * 4), G: 0, B: uint8(255 - x*4), A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	f, err := NewFrame(img, 0, time.Time{})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	return f
}

func TestIdenticalFramesAreSimilar(t *testing.T) {
	a := patternFrame(t, 1)
	b := patternFrame(t, 1)

	pixel, err := PixelDiffComparator{Threshold: 0.01}.Compare(a, b)
	if err != nil {
		t.Fatalf("pixel Compare: %v", err)
	}
	if pixel.Value != 0 || !pixel.Similar {
		t.Errorf("pixel score = %s, want 0 and similar", pixel)
	}

	hist, err := HistogramComparator{Threshold: 0.999}.Compare(a, b)
	if err != nil {
		t.Fatalf("histogram Compare: %v", err)
	}
	if hist.Value != 1.0 || !hist.Similar {
		t.Errorf("histogram score = %s, want 1.0 and similar", hist)
	}

	phash, err := PerceptualComparator{MaxDistance: 0}.Compare(a, b)
	if err != nil {
		t.Fatalf("phash Compare: %v", err)
	}
	if phash.Value != 0 || !phash.Similar {
		t.Errorf("phash score = %s, want 0 and similar", phash)
	}
}

func TestPixelDiffAboveThresholdEverywhere(t *testing.T) {
	a := solidFrame(t, 32, 32, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	b := solidFrame(t, 32, 32, color.RGBA{R: 120, G: 120, B: 120, A: 255})

	score, err := PixelDiffComparator{Threshold: DefaultPixelThreshold}.Compare(a, b)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if score.Similar {
		t.Errorf("frames 20 levels apart judged similar: %s", score)
	}
	if score.Value != 20 {
		t.Errorf("mean diff = %v, want 20", score.Value)
	}
}

func TestHistogramDistinguishesContent(t *testing.T) {
	a := solidFrame(t, 32, 32, color.RGBA{R: 10, G: 10, B: 10, A: 255})
	b := solidFrame(t, 32, 32, color.RGBA{R: 200, G: 200, B: 200, A: 255})

	score, err := HistogramComparator{Threshold: DefaultHistogramThreshold}.Compare(a, b)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	// 254 empty bins agree, the two occupied bins disagree completely
	want := 254.0 / 256.0
	if score.Value != want {
		t.Errorf("score = %v, want %v", score.Value, want)
	}

	c := patternFrame(t, 1)
	d := patternFrame(t, 0)
	if s, _ := (HistogramComparator{Threshold: DefaultHistogramThreshold}).Compare(c, d); s.Similar {
		t.Errorf("gradient vs checkerboard judged similar: %s", s)
	}
}

func TestPerceptualDistinguishesPatterns(t *testing.T) {
	score, err := PerceptualComparator{MaxDistance: DefaultPHashDistance}.Compare(patternFrame(t, 0), patternFrame(t, 1))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if score.Similar {
		t.Errorf("checkerboard vs gradient judged similar: %s", score)
	}
}

func TestComparatorsAreSymmetric(t *testing.T) {
	a := patternFrame(t, 0)
	b := patternFrame(t, 1)

	for _, cmp := range []Comparator{
		PixelDiffComparator{Threshold: DefaultPixelThreshold},
		HistogramComparator{Threshold: DefaultHistogramThreshold},
		PerceptualComparator{MaxDistance: DefaultPHashDistance},
	} {
		ab, err := cmp.Compare(a, b)
		if err != nil {
			t.Fatalf("%T Compare(a,b): %v", cmp, err)
		}
		ba, err := cmp.Compare(b, a)
		if err != nil {
			t.Fatalf("%T Compare(b,a): %v", cmp, err)
		}
		if ab.Value != ba.Value {
			t.Errorf("%T not symmetric: %v vs %v", cmp, ab.Value, ba.Value)
		}
	}
}

func TestComparatorsRejectMismatchedDimensions(t *testing.T) {
	a := solidFrame(t, 32, 32, color.RGBA{A: 255})
	b := solidFrame(t, 32, 16, color.RGBA{A: 255})

	for _, cmp := range []Comparator{
		PixelDiffComparator{Threshold: 5},
		HistogramComparator{Threshold: 0.95},
		PerceptualComparator{MaxDistance: 4},
	} {
		if _, err := cmp.Compare(a, b); !apperr.IsInput(err) {
			t.Errorf("%T: err = %v, want input error", cmp, err)
		}
		if _, err := cmp.Compare(a, nil); !apperr.IsInput(err) {
			t.Errorf("%T nil frame: err = %v, want input error", cmp, err)
		}
	}
}

func TestNewComparator(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ComparatorConfig
		want    Strategy
		wantErr bool
	}{
		{"default", DefaultComparatorConfig(), StrategyHistogram, false},
		{"pixel", ComparatorConfig{Strategy: StrategyPixel, PixelThreshold: 5}, StrategyPixel, false},
		{"phash", ComparatorConfig{Strategy: StrategyPHash, PHashDistance: 6}, StrategyPHash, false},
		{"bad pixel threshold", ComparatorConfig{Strategy: StrategyPixel}, "", true},
		{"histogram threshold 1.0", ComparatorConfig{Strategy: StrategyHistogram, HistogramThreshold: 1.0}, "", true},
		{"unknown", ComparatorConfig{Strategy: "ssim"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp, err := NewComparator(tt.cfg)
			if tt.wantErr {
				if !apperr.IsConfig(err) {
					t.Errorf("err = %v, want configuration error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewComparator: %v", err)
			}
			a := solidFrame(t, 8, 8, color.RGBA{A: 255})
			score, err := cmp.Compare(a, a)
			if err != nil {
				t.Fatalf("Compare: %v", err)
			}
			if score.Strategy != tt.want || !score.Similar {
				t.Errorf("score = %s", score)
			}
		})
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy(" Histogram "); err != nil || s != StrategyHistogram {
		t.Errorf("ParseStrategy = %q, %v", s, err)
	}
	if _, err := ParseStrategy("mse"); !apperr.IsConfig(err) {
		t.Errorf("err = %v, want configuration error", err)
	}
}
