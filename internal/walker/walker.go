// Package walker steps through the photo carousel of one profile, collecting
// distinct photos until it loops, stalls or hits a limit.
package walker

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"jordanella.com/profile-swiper/internal/apperr"
	"jordanella.com/profile-swiper/internal/cv"
	"jordanella.com/profile-swiper/internal/gesture"
	"jordanella.com/profile-swiper/internal/logging"
)

// Walker runs the Start -> CaptureFirst -> Advancing -> Done state machine.
// A Walker is not safe for concurrent walks.
type Walker struct {
	cfg      Config
	source   cv.FrameSource
	gestures Gesturer
	cmp      cv.Comparator

	prompt  cv.PromptDetector
	gray    cv.GrayscaleDetector
	locator *cv.Locator

	sleep  Sleeper
	rng    *rand.Rand
	logger *logging.Logger
	state  State
}

// New validates cfg and builds a walker over its collaborators
func New(cfg Config, source cv.FrameSource, gestures Gesturer, cmp cv.Comparator, opts ...Option) (*Walker, error) {
	switch {
	case source == nil:
		return nil, apperr.Config("walker.New", "nil frame source")
	case gestures == nil:
		return nil, apperr.Config("walker.New", "nil gesturer")
	case cmp == nil:
		return nil, apperr.Config("walker.New", "nil comparator")
	case cfg.MaxPhotos < 1:
		return nil, apperr.Config("walker.New", "max photos %d must be >= 1", cfg.MaxPhotos)
	case cfg.MaxCaptures < 0:
		return nil, apperr.Config("walker.New", "max captures %d must be >= 0", cfg.MaxCaptures)
	case cfg.DelayMin < 0 || cfg.DelayMax < cfg.DelayMin:
		return nil, apperr.Config("walker.New", "invalid delay range [%v, %v]", cfg.DelayMin, cfg.DelayMax)
	case cfg.Crop != nil && cfg.Crop.Empty():
		return nil, apperr.Config("walker.New", "empty crop box %v", *cfg.Crop)
	}

	w := &Walker{
		cfg:      cfg,
		source:   source,
		gestures: gestures,
		cmp:      cmp,
		sleep:    sleepContext,
		logger:   logging.NewLogger("Walker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if cfg.IconMode && w.locator == nil {
		return nil, apperr.Config("walker.New", "icon mode requires a locator")
	}
	if w.rng == nil {
		w.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return w, nil
}

// State returns the current state
func (w *Walker) State() State {
	return w.state
}

func (w *Walker) transition(to State) {
	w.logger.Debug(w.state.String() + " -> " + to.String())
	w.state = to
}

// Walk traverses one profile. ws may be nil.
//
// The returned session is never nil. On a device, input or comparison
// failure, or on cancellation, the session ends with reason Aborted, keeps
// the frames accepted so far and the error is returned alongside it.
func (w *Walker) Walk(ctx context.Context, ws Workspace) (*Session, error) {
	w.state = StateStart
	session := &Session{Started: time.Now()}

	reason, err := w.run(ctx, ws, session)
	if err != nil {
		reason = Aborted
	}
	session.Reason = reason
	session.Finished = time.Now()
	w.transition(StateDone)

	fields := map[string]interface{}{
		"reason":   reason.String(),
		"photos":   session.Len(),
		"captures": session.Captures,
		"skipped":  session.Skipped,
	}
	if err != nil {
		w.logger.ErrorWithContext("Walk aborted", err, fields)
	} else {
		w.logger.InfoWithContext("Walk finished", fields)
	}
	return session, err
}

func (w *Walker) run(ctx context.Context, ws Workspace, s *Session) (Reason, error) {
	w.transition(StateCaptureFirst)

	// The anchor is the first screen that is not skipped
	var anchor *cv.Frame
	for anchor == nil {
		if w.limitReached(s) {
			return CaptureLimit, nil
		}
		if s.Captures > 0 {
			if err := w.advance(ctx); err != nil {
				return Aborted, err
			}
		}
		photo, err := w.captureNext(ctx, s)
		if err != nil {
			return Aborted, err
		}
		anchor = photo
	}
	if err := w.accept(ws, s, anchor); err != nil {
		return Aborted, err
	}
	if s.Len() >= w.cfg.MaxPhotos {
		return MaxReached, nil
	}

	w.transition(StateAdvancing)
	for {
		if w.limitReached(s) {
			return CaptureLimit, nil
		}
		if err := w.advance(ctx); err != nil {
			return Aborted, err
		}
		photo, err := w.captureNext(ctx, s)
		if err != nil {
			return Aborted, err
		}
		if photo == nil {
			continue
		}

		looped, err := w.similar(anchor, photo)
		if err != nil {
			return Aborted, err
		}
		if looped {
			return LoopedToStart, nil
		}

		// Newest first, so the common stall (same photo twice in a row)
		// costs one comparison. A hit further back is a partial loop and
		// ends the walk the same way.
		for i := len(s.Frames) - 1; i > 0; i-- {
			dup, err := w.similar(s.Frames[i], photo)
			if err != nil {
				return Aborted, err
			}
			if dup {
				return DuplicateDetected, nil
			}
		}

		if err := w.accept(ws, s, photo); err != nil {
			return Aborted, err
		}
		if s.Len() >= w.cfg.MaxPhotos {
			return MaxReached, nil
		}
	}
}

func (w *Walker) limitReached(s *Session) bool {
	return w.cfg.MaxCaptures > 0 && s.Captures >= w.cfg.MaxCaptures
}

// advance shows the next image and waits for the UI to settle
func (w *Walker) advance(ctx context.Context) error {
	if err := w.gestures.Perform(ctx, gesture.NextImage); err != nil {
		return err
	}
	return w.sleep(ctx, w.delay())
}

// delay draws a pacing delay uniformly from [DelayMin, DelayMax]
func (w *Walker) delay() time.Duration {
	span := w.cfg.DelayMax - w.cfg.DelayMin
	if span <= 0 {
		return w.cfg.DelayMin
	}
	return w.cfg.DelayMin + time.Duration(w.rng.Int64N(int64(span)+1))
}

// captureNext captures one screen and returns its photo crop, or nil when
// the screen is skipped
func (w *Walker) captureNext(ctx context.Context, s *Session) (*cv.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame, err := w.source.Capture(ctx)
	if err != nil {
		return nil, err
	}
	s.Captures++

	if w.skip(frame) {
		s.Skipped++
		return nil, nil
	}

	if w.cfg.Crop == nil {
		return frame, nil
	}
	return frame.Crop(*w.cfg.Crop)
}

// skip applies the active classifiers to the full screen
func (w *Walker) skip(frame *cv.Frame) bool {
	if w.cfg.SkipPrompts {
		prompt := false
		if w.cfg.IconMode {
			matches, err := w.locator.Locate(frame)
			if err != nil {
				w.logger.Warn("Icon crops not persisted: " + err.Error())
			}
			if len(matches) > 0 {
				prompt = w.prompt.IsPromptAt(frame, matches[0].Point())
			}
		} else {
			prompt = w.prompt.IsPromptBackground(frame)
		}
		if prompt {
			w.logger.DebugWithContext("Skipping prompt card", map[string]interface{}{"seq": frame.Seq})
			return true
		}
	}
	if w.cfg.SkipGrayscale && w.gray.Check(frame) {
		w.logger.DebugWithContext("Skipping grayscale screen", map[string]interface{}{"seq": frame.Seq})
		return true
	}
	return false
}

func (w *Walker) similar(a, b *cv.Frame) (bool, error) {
	score, err := w.cmp.Compare(a, b)
	if err != nil {
		return false, err
	}
	w.logger.DebugWithContext("Compared frames", map[string]interface{}{
		"a":     a.Seq,
		"b":     b.Seq,
		"score": score.String(),
	})
	return score.Similar, nil
}

func (w *Walker) accept(ws Workspace, s *Session, f *cv.Frame) error {
	if ws != nil {
		if err := ws.Store(s.Len()+1, f); err != nil {
			return err
		}
	}
	s.Frames = append(s.Frames, f)
	return nil
}

// IsCancellation reports whether a walk error came from the caller
// cancelling the run. Timeouts are failures, not stops.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
