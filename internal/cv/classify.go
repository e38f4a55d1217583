package cv

import (
	"image"
)

// Classification of a captured frame
type Classification int

const (
	ClassPhoto Classification = iota
	ClassPrompt
)

func (c Classification) String() string {
	if c == ClassPrompt {
		return "prompt"
	}
	return "photo"
}

// Defaults for the region classifiers
const (
	DefaultPromptBrightness = 230.0
	DefaultGrayTolerance    = 10
	DefaultGrayRatio        = 0.9
	DefaultGrayBox          = 40
)

// PromptDetector decides whether the area next to a landmark (typically the
// like button's corner) is the near-white chrome of a text prompt card.
type PromptDetector struct {
	Landmark   image.Point // Fixed landmark used by IsPromptBackground
	Offset     image.Point // Anchor box top-left relative to the landmark
	Size       image.Point // Anchor box width/height
	Brightness float64     // Every channel mean must exceed this
}

// IsPromptBackground checks the anchor box next to the configured landmark
func (d PromptDetector) IsPromptBackground(f *Frame) bool {
	return d.IsPromptAt(f, d.Landmark)
}

// IsPromptAt checks the anchor box next to an explicit landmark, e.g. an
// icon match found on this frame
func (d PromptDetector) IsPromptAt(f *Frame, landmark image.Point) bool {
	if validFrame("cv.IsPromptAt", f) != nil {
		return false
	}
	min := landmark.Add(d.Offset)
	box := image.Rectangle{Min: min, Max: min.Add(d.Size)}

	r, g, b, n := RegionMean(f.Image, box)
	if n == 0 {
		return false
	}
	return r > d.Brightness && g > d.Brightness && b > d.Brightness
}

// Classify maps IsPromptBackground onto a Classification
func (d PromptDetector) Classify(f *Frame) Classification {
	if d.IsPromptBackground(f) {
		return ClassPrompt
	}
	return ClassPhoto
}

// GrayscaleDetector holds the geometry and thresholds for IsGrayscaleRegion
type GrayscaleDetector struct {
	Center    image.Point
	BoxSize   int
	Tolerance int
	Ratio     float64
}

// Check runs IsGrayscaleRegion with the detector's settings
func (d GrayscaleDetector) Check(f *Frame) bool {
	return IsGrayscaleRegion(f, d.Center, d.BoxSize, d.Tolerance, d.Ratio)
}

// IsGrayscaleRegion reports whether at least ratioThreshold of the pixels in
// the boxSize square centred on center have all pairwise channel differences
// below tolerance. Boxes outside the frame are clipped; an empty box is not
// grayscale.
func IsGrayscaleRegion(f *Frame, center image.Point, boxSize, tolerance int, ratioThreshold float64) bool {
	if validFrame("cv.IsGrayscaleRegion", f) != nil || boxSize <= 0 {
		return false
	}
	half := boxSize / 2
	box := image.Rect(center.X-half, center.Y-half, center.X-half+boxSize, center.Y-half+boxSize).
		Intersect(f.Bounds())
	if box.Empty() {
		return false
	}

	img := f.Image
	gray, total := 0, 0
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			i := img.PixOffset(x, y)
			r, g, b := int(img.Pix[i]), int(img.Pix[i+1]), int(img.Pix[i+2])
			if abs(r-g) < tolerance && abs(r-b) < tolerance && abs(g-b) < tolerance {
				gray++
			}
			total++
		}
	}

	return float64(gray)/float64(total) >= ratioThreshold
}

// RegionMean calculates the mean R, G, B over rect clipped to the image and
// the number of pixels averaged
func RegionMean(img *image.RGBA, rect image.Rectangle) (r, g, b float64, n int) {
	rect = rect.Intersect(img.Bounds())
	var sr, sg, sb uint64

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			idx := img.PixOffset(x, y)
			sr += uint64(img.Pix[idx])
			sg += uint64(img.Pix[idx+1])
			sb += uint64(img.Pix[idx+2])
			n++
		}
	}

	if n == 0 {
		return 0, 0, 0, 0
	}
	return float64(sr) / float64(n), float64(sg) / float64(n), float64(sb) / float64(n), n
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
