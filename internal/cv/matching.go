package cv

import (
	"errors"
	"fmt"
	"image"
	"math"

	"jordanella.com/profile-swiper/internal/apperr"
)

// IconMatch is one accepted template position. X,Y is the template's
// top-left anchor in frame coordinates.
type IconMatch struct {
	X, Y          int
	Width, Height int
	Score         float64
}

// Point returns the anchor position
func (m IconMatch) Point() image.Point {
	return image.Point{X: m.X, Y: m.Y}
}

// Center returns the center of the matched template
func (m IconMatch) Center() image.Point {
	return image.Point{X: m.X + m.Width/2, Y: m.Y + m.Height/2}
}

// Rect returns the matched template rectangle
func (m IconMatch) Rect() image.Rectangle {
	return image.Rect(m.X, m.Y, m.X+m.Width, m.Y+m.Height)
}

// Locator finds a fixed grayscale icon template in frames using normalized
// cross-correlation (the zero-mean coefficient, in [-1, 1]).
//
// Candidates are visited row-major over the correlation surface and accepted
// greedily: a position scoring at or above the threshold is kept unless an
// already accepted match lies within the suppression radius. This is not
// full non-max suppression; a weaker neighbour scanned first wins over a
// stronger one found later. The order is deterministic, so results are
// reproducible.
type Locator struct {
	width, height int
	centered      []float64 // Template values minus their mean, row-major
	norm          float64   // sqrt(sum(centered^2))
	opts          locatorOptions
}

// NewLocator prepares a locator for the given template. A nil, empty or
// uniform template is an InputError; invalid options are a ConfigurationError.
func NewLocator(template image.Image, opts ...Option) (*Locator, error) {
	if template == nil || template.Bounds().Empty() {
		return nil, apperr.Input("cv.NewLocator", "empty template")
	}

	o := defaultLocatorOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.threshold <= 0 || o.threshold >= 1 {
		return nil, apperr.Config("cv.NewLocator", "threshold %.3f must be in (0,1)", o.threshold)
	}
	if o.suppressionRadius < 0 {
		return nil, apperr.Config("cv.NewLocator", "suppression radius %.1f must be >= 0", o.suppressionRadius)
	}
	if o.maxMatches <= 0 {
		return nil, apperr.Config("cv.NewLocator", "max matches %d must be > 0", o.maxMatches)
	}
	if o.cropMargin < 0 {
		return nil, apperr.Config("cv.NewLocator", "crop margin %d must be >= 0", o.cropMargin)
	}

	gray := ToGray(template)
	b := gray.Bounds()
	n := b.Dx() * b.Dy()

	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += float64(gray.GrayAt(x, y).Y)
		}
	}
	mean := sum / float64(n)

	centered := make([]float64, 0, n)
	var sq float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := float64(gray.GrayAt(x, y).Y) - mean
			centered = append(centered, v)
			sq += v * v
		}
	}
	if sq == 0 {
		return nil, apperr.Input("cv.NewLocator", "template has no contrast")
	}

	return &Locator{
		width:    b.Dx(),
		height:   b.Dy(),
		centered: centered,
		norm:     math.Sqrt(sq),
		opts:     o,
	}, nil
}

// TemplateSize returns the template's width and height
func (l *Locator) TemplateSize() (int, int) {
	return l.width, l.height
}

// Locate returns the accepted matches in scan order, at most maxMatches.
// No match is an empty result, not an error. When a crop sink is configured
// and persisting fails, the matches are still returned together with the
// error.
func (l *Locator) Locate(frame *Frame) ([]IconMatch, error) {
	if err := validFrame("cv.Locate", frame); err != nil {
		return nil, err
	}

	gray := frame.Gray()
	search := gray.Bounds()
	if l.opts.region != nil {
		search = l.opts.region.Rectangle().Intersect(search)
	}

	maxY := search.Max.Y - l.height
	maxX := search.Max.X - l.width
	if search.Empty() || maxY < search.Min.Y || maxX < search.Min.X {
		// Template doesn't fit in search region
		return []IconMatch{}, nil
	}

	ii := newIntegral(gray)
	n := float64(l.width * l.height)
	radius2 := l.opts.suppressionRadius * l.opts.suppressionRadius

	matches := []IconMatch{}
	for y := search.Min.Y; y <= maxY; y++ {
		for x := search.Min.X; x <= maxX; x++ {
			sum, sq := ii.window(x, y, l.width, l.height)
			variance := sq - sum*sum/n
			if variance <= 1e-9 {
				continue
			}

			score := l.correlate(gray, x, y) / (math.Sqrt(variance) * l.norm)
			if score < l.opts.threshold {
				continue
			}
			if suppressed(matches, x, y, radius2) {
				continue
			}

			matches = append(matches, IconMatch{X: x, Y: y, Width: l.width, Height: l.height, Score: score})
			if len(matches) >= l.opts.maxMatches {
				return matches, l.persist(frame, matches)
			}
		}
	}

	return matches, l.persist(frame, matches)
}

// correlate sums centered template values times window pixels. The window
// mean term vanishes because the template is zero-mean.
func (l *Locator) correlate(gray *image.Gray, x, y int) float64 {
	var acc float64
	t := l.centered
	for ty := 0; ty < l.height; ty++ {
		row := gray.Pix[gray.PixOffset(x, y+ty):]
		base := ty * l.width
		for tx := 0; tx < l.width; tx++ {
			acc += t[base+tx] * float64(row[tx])
		}
	}
	return acc
}

// suppressed reports whether (x,y) is within the radius of an accepted match
func suppressed(matches []IconMatch, x, y int, radius2 float64) bool {
	for _, m := range matches {
		dx := float64(x - m.X)
		dy := float64(y - m.Y)
		if dx*dx+dy*dy <= radius2 {
			return true
		}
	}
	return false
}

// persist hands a crop around every match to the configured sink
func (l *Locator) persist(frame *Frame, matches []IconMatch) error {
	if l.opts.sink == nil {
		return nil
	}

	var errs []error
	margin := l.opts.cropMargin
	for i, m := range matches {
		rect := m.Rect().Inset(-margin)
		crop, err := frame.Crop(NewRegion(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := l.opts.sink.PersistCrop(crop, fmt.Sprintf("icon_%d", i+1)); err != nil {
			errs = append(errs, fmt.Errorf("persist icon crop %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

// integral holds summed-area tables of pixel values and squared values
type integral struct {
	stride int
	minX   int
	minY   int
	sum    []float64
	sq     []float64
}

func newIntegral(gray *image.Gray) *integral {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	stride := w + 1
	ii := &integral{
		stride: stride,
		minX:   b.Min.X,
		minY:   b.Min.Y,
		sum:    make([]float64, stride*(h+1)),
		sq:     make([]float64, stride*(h+1)),
	}

	for y := 0; y < h; y++ {
		row := gray.Pix[gray.PixOffset(b.Min.X, b.Min.Y+y):]
		var rowSum, rowSq float64
		for x := 0; x < w; x++ {
			v := float64(row[x])
			rowSum += v
			rowSq += v * v
			i := (y+1)*stride + x + 1
			ii.sum[i] = ii.sum[i-stride] + rowSum
			ii.sq[i] = ii.sq[i-stride] + rowSq
		}
	}
	return ii
}

// window returns the sum and squared sum of the w*h window at (x,y)
func (ii *integral) window(x, y, w, h int) (float64, float64) {
	x0, y0 := x-ii.minX, y-ii.minY
	a := y0*ii.stride + x0
	b := y0*ii.stride + x0 + w
	c := (y0+h)*ii.stride + x0
	d := (y0+h)*ii.stride + x0 + w
	return ii.sum[d] - ii.sum[b] - ii.sum[c] + ii.sum[a],
		ii.sq[d] - ii.sq[b] - ii.sq[c] + ii.sq[a]
}
