package cv

import (
	"image"
	"image/draw"
	"sync"
	"time"

	"jordanella.com/profile-swiper/internal/apperr"
)

// Frame is an immutable captured screen bitmap.
// The RGBA image always starts at (0,0).
type Frame struct {
	Image      *image.RGBA
	Seq        int // Capture order within the source
	CapturedAt time.Time

	grayOnce sync.Once
	gray     *image.Gray
}

// NewFrame wraps img as a Frame, copying it into an RGBA buffer anchored at
// the origin when needed.
func NewFrame(img image.Image, seq int, capturedAt time.Time) (*Frame, error) {
	if img == nil {
		return nil, apperr.Input("cv.NewFrame", "nil image")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, apperr.Input("cv.NewFrame", "empty image %v", b)
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	return &Frame{Image: rgba, Seq: seq, CapturedAt: capturedAt}, nil
}

// Bounds returns the frame rectangle
func (f *Frame) Bounds() image.Rectangle {
	return f.Image.Bounds()
}

// Width returns the frame width in pixels
func (f *Frame) Width() int { return f.Image.Bounds().Dx() }

// Height returns the frame height in pixels
func (f *Frame) Height() int { return f.Image.Bounds().Dy() }

// Gray returns the single-channel luminance of the frame. The result is
// computed once and shared; callers must not modify it.
func (f *Frame) Gray() *image.Gray {
	f.grayOnce.Do(func() {
		f.gray = toGray(f.Image)
	})
	return f.gray
}

// Crop returns a new frame holding the part of f inside r
func (f *Frame) Crop(r Region) (*Frame, error) {
	rect := r.Rectangle().Intersect(f.Bounds())
	if rect.Empty() {
		return nil, apperr.Input("cv.Crop", "region %v outside frame %v", r, f.Bounds())
	}
	return &Frame{
		Image:      CropRegion(f.Image, rect),
		Seq:        f.Seq,
		CapturedAt: f.CapturedAt,
	}, nil
}

// validFrame reports an InputError for nil or empty frames
func validFrame(op string, f *Frame) error {
	if f == nil || f.Image == nil {
		return apperr.Input(op, "nil frame")
	}
	if f.Bounds().Empty() {
		return apperr.Input(op, "empty frame")
	}
	return nil
}

// luminance uses the ITU-R 601-2 weights
func luminance(r, g, b uint8) uint8 {
	return uint8((int(r)*299 + int(g)*587 + int(b)*114) / 1000)
}

// toGray converts RGBA to 8-bit luminance
func toGray(img *image.RGBA) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		src := img.Pix[img.PixOffset(bounds.Min.X, y):]
		dst := gray.Pix[gray.PixOffset(bounds.Min.X, y):]
		for x := 0; x < bounds.Dx(); x++ {
			i := x * 4
			dst[x] = luminance(src[i], src[i+1], src[i+2])
		}
	}

	return gray
}

// ToGray converts any image to 8-bit luminance with the same weights used
// for frames
func ToGray(img image.Image) *image.Gray {
	if rgba, ok := img.(*image.RGBA); ok {
		return toGray(rgba)
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return toGray(rgba)
}

// CropRegion extracts a rectangular region from an image into a new image
// anchored at the origin
func CropRegion(img *image.RGBA, rect image.Rectangle) *image.RGBA {
	rect = rect.Intersect(img.Bounds())
	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		src := img.Pix[img.PixOffset(rect.Min.X, y) : img.PixOffset(rect.Min.X, y)+rect.Dx()*4]
		copy(cropped.Pix[cropped.PixOffset(0, y-rect.Min.Y):], src)
	}

	return cropped
}
