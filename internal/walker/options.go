package walker

import (
	"context"
	"math/rand/v2"
	"time"

	"jordanella.com/profile-swiper/internal/cv"
	"jordanella.com/profile-swiper/internal/logging"
)

// Option configures a Walker
type Option func(*Walker)

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// WithPromptDetector sets the prompt classifier
func WithPromptDetector(d cv.PromptDetector) Option {
	return func(w *Walker) {
		w.prompt = d
	}
}

// WithGrayscaleDetector sets the grayscale classifier
func WithGrayscaleDetector(d cv.GrayscaleDetector) Option {
	return func(w *Walker) {
		w.gray = d
	}
}

// WithLocator sets the icon locator used in icon mode
func WithLocator(l *cv.Locator) Option {
	return func(w *Walker) {
		w.locator = l
	}
}

// WithSleeper replaces the pacing sleep
func WithSleeper(s Sleeper) Option {
	return func(w *Walker) {
		w.sleep = s
	}
}

// WithRand sets the source for pacing delays
func WithRand(r *rand.Rand) Option {
	return func(w *Walker) {
		w.rng = r
	}
}

// WithLogger replaces the component logger
func WithLogger(l *logging.Logger) Option {
	return func(w *Walker) {
		w.logger = l
	}
}

// sleepContext is the default Sleeper
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
