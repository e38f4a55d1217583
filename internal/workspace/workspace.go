// Package workspace owns the per-profile directories that accepted photos
// are written to, and their archiving once a profile has been decided.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"jordanella.com/profile-swiper/internal/apperr"
	"jordanella.com/profile-swiper/internal/cv"
	"jordanella.com/profile-swiper/internal/logging"
)

// Naming selects how profile directories are named
type Naming string

const (
	NamingUUID      Naming = "uuid"
	NamingTimestamp Naming = "timestamp"
)

// Subdirectories for per-image labels
const (
	LikedImagesDir    = "Liked_Images"
	DislikedImagesDir = "Disliked_Images"
)

const timestampLayout = "20060102_150405"

// ParseNaming validates a naming scheme
func ParseNaming(s string) (Naming, error) {
	switch n := Naming(strings.ToLower(strings.TrimSpace(s))); n {
	case NamingUUID, NamingTimestamp:
		return n, nil
	case "":
		return NamingUUID, nil
	default:
		return "", apperr.Config("workspace.ParseNaming", "unknown workspace naming %q", s)
	}
}

// Manager creates isolated workspaces under a root directory
type Manager struct {
	root   string
	naming Naming
	now    func() time.Time
	logger *logging.Logger
}

// NewManager creates root if needed
func NewManager(root string, naming Naming) (*Manager, error) {
	if _, err := ParseNaming(string(naming)); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperr.Wrapf(err, apperr.KindConfig, "workspace.NewManager", "create %s", root)
	}
	return &Manager{
		root:   root,
		naming: naming,
		now:    time.Now,
		logger: logging.NewLogger("Workspace"),
	}, nil
}

// Root returns the directory workspaces are created in
func (m *Manager) Root() string {
	return m.root
}

// Create makes a fresh profile directory with its label subdirectories
func (m *Manager) Create() (*Workspace, error) {
	base := "profile_"
	if m.naming == NamingTimestamp {
		base += m.now().Format(timestampLayout)
	} else {
		base += strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	// Timestamps collide when profiles are decided within the same second
	name := base
	for i := 2; ; i++ {
		err := os.Mkdir(filepath.Join(m.root, name), 0o755)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) || i > 100 {
			return nil, apperr.Wrapf(err, apperr.KindInput, "workspace.Create", "create %s", name)
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}

	ws := &Workspace{Name: name, Dir: filepath.Join(m.root, name), now: m.now}
	for _, sub := range []string{LikedImagesDir, DislikedImagesDir} {
		if err := os.MkdirAll(filepath.Join(ws.Dir, sub), 0o755); err != nil {
			return nil, apperr.Wrapf(err, apperr.KindInput, "workspace.Create", "create %s", sub)
		}
	}

	m.logger.DebugWithContext("Created workspace", map[string]interface{}{"dir": ws.Dir})
	return ws, nil
}

// Workspace is the directory of one profile traversal
type Workspace struct {
	Name string
	Dir  string

	mu     sync.Mutex
	images map[int]string
	now    func() time.Time
}

// ImageName returns the file name for the index-th accepted photo
func ImageName(index int) string {
	return fmt.Sprintf("image_%d.png", index)
}

// Store writes an accepted photo as image_<index>.png
func (w *Workspace) Store(index int, f *cv.Frame) error {
	if index < 1 {
		return apperr.Input("workspace.Store", "index %d must be >= 1", index)
	}
	path := filepath.Join(w.Dir, ImageName(index))
	if err := writePNG(path, f); err != nil {
		return err
	}

	w.mu.Lock()
	if w.images == nil {
		w.images = make(map[int]string)
	}
	w.images[index] = path
	w.mu.Unlock()
	return nil
}

// ImagePath returns the stored path of an accepted photo
func (w *Workspace) ImagePath(index int) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.images[index]
	return p, ok
}

// PersistCrop writes a debugging crop under crops/
func (w *Workspace) PersistCrop(f *cv.Frame, name string) error {
	return DirSink{Dir: filepath.Join(w.Dir, "crops")}.PersistCrop(f, name)
}

// Label copies a stored photo into the liked or disliked subdirectory
func (w *Workspace) Label(index int, liked bool) error {
	src, ok := w.ImagePath(index)
	if !ok {
		return apperr.Input("workspace.Label", "no stored image %d", index)
	}
	sub := DislikedImagesDir
	if liked {
		sub = LikedImagesDir
	}
	return copyFile(src, filepath.Join(w.Dir, sub, filepath.Base(src)))
}

// Prune removes the files at the top level of the workspace, keeping the
// label subdirectories
func (w *Workspace) Prune() error {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return apperr.Wrapf(err, apperr.KindInput, "workspace.Prune", "read %s", w.Dir)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(w.Dir, e.Name())); err != nil {
			return apperr.Wrapf(err, apperr.KindInput, "workspace.Prune", "remove %s", e.Name())
		}
	}

	w.mu.Lock()
	w.images = nil
	w.mu.Unlock()
	return nil
}

// Discard deletes the workspace
func (w *Workspace) Discard() error {
	if err := os.RemoveAll(w.Dir); err != nil {
		return apperr.Wrapf(err, apperr.KindInput, "workspace.Discard", "remove %s", w.Dir)
	}
	return nil
}

// Archive moves the workspace to <destRoot>/Person_<n>, adding a timestamp
// suffix when that name is taken. It returns the new location.
func (w *Workspace) Archive(destRoot string, n int) (string, error) {
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return "", apperr.Wrapf(err, apperr.KindInput, "workspace.Archive", "create %s", destRoot)
	}

	dest := filepath.Join(destRoot, fmt.Sprintf("Person_%d", n))
	if _, err := os.Stat(dest); err == nil {
		dest += "_" + w.now().Format(timestampLayout)
	}
	if _, err := os.Stat(dest); err == nil {
		return "", apperr.Input("workspace.Archive", "destination %s already exists", dest)
	}

	if err := moveDir(w.Dir, dest); err != nil {
		return "", apperr.Wrapf(err, apperr.KindInput, "workspace.Archive", "move to %s", dest)
	}
	w.Dir = dest
	w.mu.Lock()
	for i, p := range w.images {
		w.images[i] = filepath.Join(dest, filepath.Base(p))
	}
	w.mu.Unlock()
	return dest, nil
}

// DirSink writes crops as PNG files into a directory
type DirSink struct {
	Dir string
}

// PersistCrop writes <name>.png, or <name>_<seq>.png for frames with a
// capture sequence so crops from different captures don't overwrite each
// other
func (s DirSink) PersistCrop(f *cv.Frame, name string) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return apperr.Wrapf(err, apperr.KindInput, "workspace.PersistCrop", "create %s", s.Dir)
	}
	file := name + ".png"
	if f != nil && f.Seq > 0 {
		file = fmt.Sprintf("%s_%d.png", name, f.Seq)
	}
	return writePNG(filepath.Join(s.Dir, file), f)
}
