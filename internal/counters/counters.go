// Package counters persists the running like/dislike/image tally.
package counters

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"jordanella.com/profile-swiper/internal/apperr"
)

// Tally is the persisted record
type Tally struct {
	TotalLikes    int `json:"total_likes"`
	TotalDislikes int `json:"total_dislikes"`
	TotalImages   int `json:"total_images"`
}

// Store holds the tally in memory and rewrites the file after every change
type Store struct {
	mu    sync.Mutex
	path  string
	tally Tally
}

// Open loads the counters at path. A missing file starts from zero;
// unreadable or negative counters are an InputError.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.KindInput, "counters.Open", "read %s", path)
	}
	if len(data) == 0 {
		return s, nil
	}

	if err := json.Unmarshal(data, &s.tally); err != nil {
		return nil, apperr.Wrapf(err, apperr.KindInput, "counters.Open", "parse %s", path)
	}
	if s.tally.TotalLikes < 0 || s.tally.TotalDislikes < 0 || s.tally.TotalImages < 0 {
		return nil, apperr.Input("counters.Open", "negative counter in %s: %+v", path, s.tally)
	}
	return s, nil
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// Tally returns a copy of the current counts
func (s *Store) Tally() Tally {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tally
}

// RecordLike counts a liked profile and returns its ordinal among likes
func (s *Store) RecordLike() (int, error) {
	return s.record(true)
}

// RecordDislike counts a disliked profile and returns its ordinal among
// dislikes
func (s *Store) RecordDislike() (int, error) {
	return s.record(false)
}

func (s *Store) record(liked bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if liked {
		s.tally.TotalLikes++
		n = s.tally.TotalLikes
	} else {
		s.tally.TotalDislikes++
		n = s.tally.TotalDislikes
	}
	s.tally.TotalImages++
	return n, s.flushLocked()
}

// Flush rewrites the file with the current counts
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// flushLocked writes a temp file next to the target and renames it over, so
// readers see either the old or the new record
func (s *Store) flushLocked() error {
	data, err := json.MarshalIndent(s.tally, "", "    ")
	if err != nil {
		return apperr.Wrap(err, apperr.KindInput, "counters.Flush", "encode")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Wrapf(err, apperr.KindInput, "counters.Flush", "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return apperr.Wrapf(err, apperr.KindInput, "counters.Flush", "create temp in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperr.Wrap(err, apperr.KindInput, "counters.Flush", "write temp")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperr.Wrap(err, apperr.KindInput, "counters.Flush", "sync temp")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperr.Wrap(err, apperr.KindInput, "counters.Flush", "close temp")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return apperr.Wrapf(err, apperr.KindInput, "counters.Flush", "replace %s", s.path)
	}
	return nil
}
