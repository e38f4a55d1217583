package cv

import (
	"image"
	"image/color"
	"math/rand/v2"
	"testing"
	"time"
)

func TestPromptDetector(t *testing.T) {
	detector := PromptDetector{
		Landmark:   image.Point{X: 50, Y: 50},
		Offset:     image.Point{X: -20, Y: -20},
		Size:       image.Point{X: 10, Y: 10},
		Brightness: DefaultPromptBrightness,
	}

	tests := []struct {
		name  string
		fill  color.RGBA
		want  bool
		class Classification
	}{
		{"pure white is prompt", color.RGBA{R: 255, G: 255, B: 255, A: 255}, true, ClassPrompt},
		{"pure black is photo", color.RGBA{A: 255}, false, ClassPhoto},
		{"one dim channel is photo", color.RGBA{R: 255, G: 255, B: 200, A: 255}, false, ClassPhoto},
		{"exactly at threshold is photo", color.RGBA{R: 230, G: 230, B: 230, A: 255}, false, ClassPhoto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := solidFrame(t, 100, 100, tt.fill)
			if got := detector.IsPromptBackground(f); got != tt.want {
				t.Errorf("IsPromptBackground = %t, want %t", got, tt.want)
			}
			if got := detector.Classify(f); got != tt.class {
				t.Errorf("Classify = %s, want %s", got, tt.class)
			}
		})
	}
}

func TestPromptDetectorOnlyReadsAnchorBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	// White anchor box at (30,30)-(40,40) on an otherwise black frame
	for y := 30; y < 40; y++ {
		for x := 30; x < 40; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 250, G: 250, B: 250, A: 255})
		}
	}
	f, err := NewFrame(img, 0, time.Time{})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}

	d := PromptDetector{Offset: image.Point{X: -20, Y: -20}, Size: image.Point{X: 10, Y: 10}, Brightness: 230}
	if !d.IsPromptAt(f, image.Point{X: 50, Y: 50}) {
		t.Error("landmark (50,50) should see the white box")
	}
	if d.IsPromptAt(f, image.Point{X: 90, Y: 90}) {
		t.Error("landmark (90,90) should see black")
	}
	if d.IsPromptAt(f, image.Point{X: 500, Y: 500}) {
		t.Error("anchor box outside the frame must not classify as prompt")
	}
}

func TestIsGrayscaleRegion(t *testing.T) {
	center := image.Point{X: 50, Y: 50}

	gray := solidFrame(t, 100, 100, color.RGBA{R: 90, G: 90, B: 90, A: 255})
	if !IsGrayscaleRegion(gray, center, DefaultGrayBox, DefaultGrayTolerance, 1.0) {
		t.Error("R==G==B region should be grayscale at ratio 1.0")
	}

	rng := rand.New(rand.NewPCG(1, 2))
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.IntN(256))
		img.Pix[i+1] = uint8(rng.IntN(256))
		img.Pix[i+2] = uint8(rng.IntN(256))
		img.Pix[i+3] = 255
	}
	noisy, err := NewFrame(img, 0, time.Time{})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	if IsGrayscaleRegion(noisy, center, DefaultGrayBox, DefaultGrayTolerance, DefaultGrayRatio) {
		t.Error("random RGB region should not be grayscale")
	}

	tinted := solidFrame(t, 100, 100, color.RGBA{R: 120, G: 100, B: 100, A: 255})
	if IsGrayscaleRegion(tinted, center, DefaultGrayBox, DefaultGrayTolerance, DefaultGrayRatio) {
		t.Error("tinted region (R-G=20) should not be grayscale at tolerance 10")
	}

	d := GrayscaleDetector{Center: center, BoxSize: 0, Tolerance: 10, Ratio: 0.9}
	if d.Check(gray) {
		t.Error("zero box size should never be grayscale")
	}
}

func TestRegionMean(t *testing.T) {
	f := solidFrame(t, 10, 10, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	r, g, b, n := RegionMean(f.Image, image.Rect(5, 5, 20, 20))
	if n != 25 {
		t.Errorf("n = %d, want 25 after clipping", n)
	}
	if r != 10 || g != 20 || b != 30 {
		t.Errorf("mean = (%v,%v,%v), want (10,20,30)", r, g, b)
	}
	if _, _, _, n := RegionMean(f.Image, image.Rect(50, 50, 60, 60)); n != 0 {
		t.Errorf("outside region n = %d, want 0", n)
	}
}
