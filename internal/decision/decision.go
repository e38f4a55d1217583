// Package decision supplies like/dislike verdicts for profiles and photos.
package decision

import (
	"context"
	"io"
	"strings"
	"sync"

	"jordanella.com/profile-swiper/internal/apperr"
	"jordanella.com/profile-swiper/internal/cv"
)

// Decision is a verdict on a profile or a single photo
type Decision int

const (
	Skip Decision = iota
	Like
	Dislike
)

func (d Decision) String() string {
	switch d {
	case Like:
		return "like"
	case Dislike:
		return "dislike"
	default:
		return "skip"
	}
}

// ParseDecision accepts like/dislike/skip
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "like":
		return Like, nil
	case "dislike":
		return Dislike, nil
	case "skip", "":
		return Skip, nil
	default:
		return Skip, apperr.Config("decision.ParseDecision", "unknown decision %q", s)
	}
}

// Candidate is what a verdict is asked for: a whole profile (Index 0) or
// the Index-th photo of it
type Candidate struct {
	Frames []*cv.Frame
	Dir    string // Workspace holding the stored photos
	Index  int
}

// Decider gives the verdict on a whole profile. Skip is not a valid answer.
type Decider interface {
	Decide(ctx context.Context, c Candidate) (Decision, error)
}

// Labeler gives an optional verdict on a single photo
type Labeler interface {
	Label(ctx context.Context, c Candidate) (Decision, error)
}

// Scripted replays a fixed list of decisions, for headless runs and tests.
// It returns io.EOF once the script is used up.
type Scripted struct {
	mu        sync.Mutex
	decisions []Decision
	next      int
}

// NewScripted creates a scripted provider
func NewScripted(decisions ...Decision) *Scripted {
	return &Scripted{decisions: decisions}
}

// ParseScript builds a scripted provider from "like,dislike,..."
func ParseScript(s string) (*Scripted, error) {
	var decisions []Decision
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := ParseDecision(part)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return NewScripted(decisions...), nil
}

func (s *Scripted) Decide(ctx context.Context, c Candidate) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Skip, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.decisions) {
		return Skip, io.EOF
	}
	d := s.decisions[s.next]
	s.next++
	return d, nil
}

func (s *Scripted) Label(ctx context.Context, c Candidate) (Decision, error) {
	return s.Decide(ctx, c)
}

// Remaining returns the number of unused decisions
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.decisions) - s.next
}

// Fixed always answers with the same decision
type Fixed Decision

func (f Fixed) Decide(ctx context.Context, c Candidate) (Decision, error) {
	return Decision(f), ctx.Err()
}

func (f Fixed) Label(ctx context.Context, c Candidate) (Decision, error) {
	return Decision(f), ctx.Err()
}
