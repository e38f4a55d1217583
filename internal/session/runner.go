// Package session runs the profile loop: walk a profile, get a verdict,
// record it, archive the photos and swipe.
package session

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"time"

	"jordanella.com/profile-swiper/internal/apperr"
	"jordanella.com/profile-swiper/internal/counters"
	"jordanella.com/profile-swiper/internal/decision"
	"jordanella.com/profile-swiper/internal/gesture"
	"jordanella.com/profile-swiper/internal/logging"
	"jordanella.com/profile-swiper/internal/walker"
	"jordanella.com/profile-swiper/internal/workspace"
)

// Walker traverses one profile into a workspace
type Walker interface {
	Walk(ctx context.Context, ws walker.Workspace) (*walker.Session, error)
}

// Config holds the outer loop policy
type Config struct {
	LikedDir         string
	DislikedDir      string
	AutoRejectSingle bool // Dislike single-photo profiles without asking
	MaxProfiles      int  // Stop after this many profiles; 0 runs until stopped
	DelayMin         time.Duration
	DelayMax         time.Duration
}

// Outcome describes one processed profile
type Outcome struct {
	Session      *walker.Session
	Decision     decision.Decision
	AutoRejected bool
	Ordinal      int    // Person_<n> number, 0 when not archived
	ArchivedTo   string // Final location of the workspace
}

// Runner drives profiles one after another. Counters are flushed on every
// exit path of Run.
type Runner struct {
	cfg      Config
	manager  *workspace.Manager
	walker   Walker
	gestures walker.Gesturer
	decider  decision.Decider
	labeler  decision.Labeler
	counters *counters.Store

	sleep  walker.Sleeper
	rng    *rand.Rand
	logger *logging.Logger
}

// NewRunner wires the loop. labeler may be nil to skip per-photo labels.
func NewRunner(cfg Config, manager *workspace.Manager, w Walker, gestures walker.Gesturer,
	decider decision.Decider, labeler decision.Labeler, store *counters.Store) (*Runner, error) {
	switch {
	case manager == nil || w == nil || gestures == nil || decider == nil || store == nil:
		return nil, apperr.Config("session.NewRunner", "missing collaborator")
	case cfg.LikedDir == "" || cfg.DislikedDir == "":
		return nil, apperr.Config("session.NewRunner", "liked and disliked directories are required")
	case cfg.MaxProfiles < 0:
		return nil, apperr.Config("session.NewRunner", "max profiles %d must be >= 0", cfg.MaxProfiles)
	case cfg.DelayMin < 0 || cfg.DelayMax < cfg.DelayMin:
		return nil, apperr.Config("session.NewRunner", "invalid delay range [%v, %v]", cfg.DelayMin, cfg.DelayMax)
	}

	return &Runner{
		cfg:      cfg,
		manager:  manager,
		walker:   w,
		gestures: gestures,
		decider:  decider,
		labeler:  labeler,
		counters: store,
		sleep:    pause,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger:   logging.NewLogger("Session"),
	}, nil
}

// SetSleeper replaces the pacing sleep
func (r *Runner) SetSleeper(s walker.Sleeper) {
	r.sleep = s
}

// Run processes profiles until the context is cancelled, the decider runs
// out of answers, MaxProfiles is reached or an error occurs. Cancellation
// and an exhausted decider are a normal stop.
func (r *Runner) Run(ctx context.Context) (err error) {
	defer func() {
		if flushErr := r.counters.Flush(); flushErr != nil {
			r.logger.Error("Failed to flush counters", flushErr)
			err = errors.Join(err, flushErr)
		}
		t := r.counters.Tally()
		r.logger.InfoWithContext("Counters saved", map[string]interface{}{
			"likes":    t.TotalLikes,
			"dislikes": t.TotalDislikes,
			"images":   t.TotalImages,
		})
	}()

	for n := 0; r.cfg.MaxProfiles == 0 || n < r.cfg.MaxProfiles; n++ {
		if _, err := r.RunOnce(ctx); err != nil {
			if walker.IsCancellation(err) {
				r.logger.Info("Stopped by user")
				return nil
			}
			if errors.Is(err, io.EOF) {
				r.logger.Info("No more decisions")
				return nil
			}
			return err
		}
	}
	return nil
}

// RunOnce walks and settles a single profile
func (r *Runner) RunOnce(ctx context.Context) (*Outcome, error) {
	ws, err := r.manager.Create()
	if err != nil {
		return nil, err
	}

	s, err := r.walker.Walk(ctx, ws)
	if err != nil {
		r.logger.WarnWithContext("Profile walk aborted, workspace kept", map[string]interface{}{"dir": ws.Dir})
		return &Outcome{Session: s}, err
	}
	out := &Outcome{Session: s}

	// Nothing to judge, or a single photo under the auto-reject policy
	if s.Len() == 0 || (s.Len() == 1 && r.cfg.AutoRejectSingle) {
		r.logger.InfoWithContext("Automatically disliking profile", map[string]interface{}{"photos": s.Len()})
		out.Decision = decision.Dislike
		out.AutoRejected = true
		if err := r.swipe(ctx, gesture.Dislike); err != nil {
			return out, err
		}
		return out, ws.Discard()
	}

	if r.labeler != nil {
		if err := r.label(ctx, ws, s); err != nil {
			return out, err
		}
	}

	d, err := r.decider.Decide(ctx, decision.Candidate{Frames: s.Frames, Dir: ws.Dir})
	if err != nil {
		return out, err
	}
	if d == decision.Skip {
		return out, apperr.Config("session.RunOnce", "decider returned skip for a profile")
	}
	out.Decision = d

	// With labels the subfolders carry the result and the raw photos go
	if r.labeler != nil {
		if err := ws.Prune(); err != nil {
			return out, err
		}
	}

	liked := d == decision.Like
	dest := r.cfg.DislikedDir
	if liked {
		out.Ordinal, err = r.counters.RecordLike()
		dest = r.cfg.LikedDir
	} else {
		out.Ordinal, err = r.counters.RecordDislike()
	}
	if err != nil {
		return out, err
	}

	out.ArchivedTo, err = ws.Archive(dest, out.Ordinal)
	if err != nil {
		return out, err
	}
	r.logger.InfoWithContext("Profile decided", map[string]interface{}{
		"decision": d.String(),
		"photos":   s.Len(),
		"reason":   s.Reason.String(),
		"archive":  out.ArchivedTo,
	})

	kind := gesture.Dislike
	if liked {
		kind = gesture.Like
	}
	return out, r.swipe(ctx, kind)
}

func (r *Runner) label(ctx context.Context, ws *workspace.Workspace, s *walker.Session) error {
	for i := range s.Frames {
		c := decision.Candidate{Frames: s.Frames[i : i+1], Dir: ws.Dir, Index: i + 1}
		d, err := r.labeler.Label(ctx, c)
		if err != nil {
			return err
		}
		if d == decision.Skip {
			continue
		}
		if err := ws.Label(i+1, d == decision.Like); err != nil {
			return err
		}
	}
	return nil
}

// swipe performs the verdict gesture and waits for the next profile
func (r *Runner) swipe(ctx context.Context, kind gesture.Kind) error {
	if err := r.gestures.Perform(ctx, kind); err != nil {
		return err
	}
	d := r.cfg.DelayMin
	if span := r.cfg.DelayMax - r.cfg.DelayMin; span > 0 {
		d += time.Duration(r.rng.Int64N(int64(span) + 1))
	}
	return r.sleep(ctx, d)
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
