package cv

import (
	"fmt"
	"math"
	"strings"

	"github.com/corona10/goimagehash"

	"jordanella.com/profile-swiper/internal/apperr"
)

// Strategy names a frame comparison algorithm
type Strategy string

const (
	StrategyPixel     Strategy = "pixel"
	StrategyHistogram Strategy = "histogram"
	StrategyPHash     Strategy = "phash"
)

// Default thresholds
const (
	DefaultPixelThreshold     = 5.0
	DefaultHistogramThreshold = 0.95
	DefaultPHashDistance      = 4
)

// ParseStrategy converts a config value to a Strategy
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyPixel, StrategyHistogram, StrategyPHash:
		return st, nil
	default:
		return "", apperr.Config("cv.ParseStrategy", "unknown comparator strategy %q", s)
	}
}

// Score is the outcome of comparing two frames
type Score struct {
	Strategy  Strategy
	Value     float64
	Threshold float64
	Similar   bool
}

func (s Score) String() string {
	return fmt.Sprintf("%s=%.4f (threshold %.4f, similar=%t)", s.Strategy, s.Value, s.Threshold, s.Similar)
}

// Comparator decides whether two equally sized frames show the same image.
// Scores are symmetric: Compare(a, b) equals Compare(b, a).
type Comparator interface {
	Compare(a, b *Frame) (Score, error)
}

// ComparatorConfig selects and parameterises a Comparator
type ComparatorConfig struct {
	Strategy           Strategy
	PixelThreshold     float64
	HistogramThreshold float64
	PHashDistance      int
}

// DefaultComparatorConfig returns the histogram strategy with default thresholds
func DefaultComparatorConfig() ComparatorConfig {
	return ComparatorConfig{
		Strategy:           StrategyHistogram,
		PixelThreshold:     DefaultPixelThreshold,
		HistogramThreshold: DefaultHistogramThreshold,
		PHashDistance:      DefaultPHashDistance,
	}
}

// NewComparator builds the comparator selected by cfg
func NewComparator(cfg ComparatorConfig) (Comparator, error) {
	switch cfg.Strategy {
	case StrategyPixel:
		if cfg.PixelThreshold <= 0 || cfg.PixelThreshold > 255 {
			return nil, apperr.Config("cv.NewComparator", "pixel threshold %.2f must be in (0,255]", cfg.PixelThreshold)
		}
		return PixelDiffComparator{Threshold: cfg.PixelThreshold}, nil
	case StrategyHistogram:
		if cfg.HistogramThreshold <= 0 || cfg.HistogramThreshold >= 1 {
			return nil, apperr.Config("cv.NewComparator", "histogram threshold %.3f must be in (0,1)", cfg.HistogramThreshold)
		}
		return HistogramComparator{Threshold: cfg.HistogramThreshold}, nil
	case StrategyPHash:
		if cfg.PHashDistance < 0 || cfg.PHashDistance > 64 {
			return nil, apperr.Config("cv.NewComparator", "phash distance %d must be in [0,64]", cfg.PHashDistance)
		}
		return PerceptualComparator{MaxDistance: cfg.PHashDistance}, nil
	default:
		return nil, apperr.Config("cv.NewComparator", "unknown comparator strategy %q", cfg.Strategy)
	}
}

// checkPair validates both frames and enforces equal dimensions
func checkPair(op string, a, b *Frame) error {
	if err := validFrame(op, a); err != nil {
		return err
	}
	if err := validFrame(op, b); err != nil {
		return err
	}
	if a.Bounds().Size() != b.Bounds().Size() {
		return apperr.Input(op, "dimension mismatch %v vs %v", a.Bounds().Size(), b.Bounds().Size())
	}
	return nil
}

// PixelDiffComparator compares the mean absolute luminance difference.
// Frames are similar when the mean is below Threshold (0-255 scale).
type PixelDiffComparator struct {
	Threshold float64
}

func (c PixelDiffComparator) Compare(a, b *Frame) (Score, error) {
	if err := checkPair("cv.PixelDiff", a, b); err != nil {
		return Score{}, err
	}
	mean := MeanAbsDiff(a, b)
	return Score{
		Strategy:  StrategyPixel,
		Value:     mean,
		Threshold: c.Threshold,
		Similar:   mean < c.Threshold,
	}, nil
}

// MeanAbsDiff returns the mean of |gray(a) - gray(b)| over all pixels.
// Both frames must have the same size.
func MeanAbsDiff(a, b *Frame) float64 {
	ga, gb := a.Gray(), b.Gray()
	var total uint64
	for i := range ga.Pix {
		total += uint64(abs(int(ga.Pix[i]) - int(gb.Pix[i])))
	}
	return float64(total) / float64(len(ga.Pix))
}

// HistogramComparator compares 256-bin luminance histograms. The score is
// the mean over bins of 1 - |h1-h2| / max(h1, h2, 1); frames are similar
// when it exceeds Threshold.
type HistogramComparator struct {
	Threshold float64
}

func (c HistogramComparator) Compare(a, b *Frame) (Score, error) {
	if err := checkPair("cv.Histogram", a, b); err != nil {
		return Score{}, err
	}
	score := HistogramSimilarity(Histogram(a), Histogram(b))
	return Score{
		Strategy:  StrategyHistogram,
		Value:     score,
		Threshold: c.Threshold,
		Similar:   score > c.Threshold,
	}, nil
}

// Histogram returns the 256-bin luminance histogram of a frame
func Histogram(f *Frame) [256]int {
	var h [256]int
	for _, v := range f.Gray().Pix {
		h[v]++
	}
	return h
}

// HistogramSimilarity scores two histograms in [0,1]
func HistogramSimilarity(h1, h2 [256]int) float64 {
	var total float64
	for i := range h1 {
		denom := math.Max(float64(max(h1[i], h2[i])), 1)
		total += 1 - math.Abs(float64(h1[i]-h2[i]))/denom
	}
	return total / float64(len(h1))
}

// PerceptualComparator compares 64-bit perceptual hashes. Frames are similar
// when the Hamming distance is at most MaxDistance.
type PerceptualComparator struct {
	MaxDistance int
}

func (c PerceptualComparator) Compare(a, b *Frame) (Score, error) {
	if err := checkPair("cv.PerceptualHash", a, b); err != nil {
		return Score{}, err
	}
	ha, err := goimagehash.PerceptionHash(a.Image)
	if err != nil {
		return Score{}, apperr.Wrap(err, apperr.KindInput, "cv.PerceptualHash", "hash first frame")
	}
	hb, err := goimagehash.PerceptionHash(b.Image)
	if err != nil {
		return Score{}, apperr.Wrap(err, apperr.KindInput, "cv.PerceptualHash", "hash second frame")
	}
	dist, err := ha.Distance(hb)
	if err != nil {
		return Score{}, apperr.Wrap(err, apperr.KindInput, "cv.PerceptualHash", "hash distance")
	}
	return Score{
		Strategy:  StrategyPHash,
		Value:     float64(dist),
		Threshold: float64(c.MaxDistance),
		Similar:   dist <= c.MaxDistance,
	}, nil
}
