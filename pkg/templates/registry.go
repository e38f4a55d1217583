// Package templates keeps the icon templates the locator searches for,
// defined in YAML and loaded from image files on demand.
package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"jordanella.com/profile-swiper/internal/apperr"
	"jordanella.com/profile-swiper/internal/cv"
	"jordanella.com/profile-swiper/internal/logging"
)

// Registry holds named templates. It is built once at startup and passed to
// whatever needs a locator.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]cv.Template
	basePath  string // Base path for template image files
	cache     *ImageCache
	logger    *logging.Logger
}

// Definition is one template entry in the YAML file
type Definition struct {
	Name      string     `yaml:"name"`
	Path      string     `yaml:"path"`
	Threshold float64    `yaml:"threshold,omitempty"`
	Region    *RegionDef `yaml:"region,omitempty"`
	Scale     float64    `yaml:"scale,omitempty"`
	Preload   bool       `yaml:"preload,omitempty"`      // Decode at load time
	Transient bool       `yaml:"unload_after,omitempty"` // Drop the bitmap after each use
}

// RegionDef is a search region in the YAML file
type RegionDef struct {
	X1 int `yaml:"x1"`
	Y1 int `yaml:"y1"`
	X2 int `yaml:"x2"`
	Y2 int `yaml:"y2"`
}

// File is the layout of a template YAML file
type File struct {
	Templates []Definition `yaml:"templates"`
}

// NewRegistry creates an empty registry. basePath is the directory relative
// template paths are resolved against.
func NewRegistry(basePath string) *Registry {
	return &Registry{
		templates: make(map[string]cv.Template),
		basePath:  basePath,
		cache:     NewImageCache(),
		logger:    logging.NewLogger("Templates"),
	}
}

// OpenRegistry builds the registry for a templates directory. With a file
// only that file is loaded; otherwise every YAML file in dir is, when dir
// exists.
func OpenRegistry(dir, file string) (*Registry, error) {
	r := NewRegistry(dir)
	if file != "" {
		if err := r.LoadFromFile(file); err != nil {
			return nil, err
		}
		return r, nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return r, nil
	}
	if err := r.LoadFromDirectory(dir); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadFromFile loads the templates defined in a YAML file
func (r *Registry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperr.Wrapf(err, apperr.KindConfig, "templates.LoadFromFile", "failed to read template file %s", path)
	}
	return r.Parse(data)
}

// Parse loads template definitions from YAML data. Nothing is registered if
// any entry is invalid.
func (r *Registry) Parse(data []byte) error {
	const op = "templates.Parse"

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return apperr.Wrap(err, apperr.KindConfig, op, "failed to unmarshal template YAML")
	}

	type entry struct {
		tmpl      cv.Template
		preload   bool
		transient bool
	}
	parsed := make([]entry, 0, len(file.Templates))
	seen := make(map[string]bool, len(file.Templates))
	for i, def := range file.Templates {
		switch {
		case def.Name == "":
			return apperr.Config(op, "template %d: name cannot be empty", i+1)
		case def.Path == "":
			return apperr.Config(op, "template %d (%s): path cannot be empty", i+1, def.Name)
		case seen[def.Name]:
			return apperr.Config(op, "template %q defined twice", def.Name)
		}
		seen[def.Name] = true

		tmpl := cv.Template{
			Name:      def.Name,
			Path:      r.resolve(def.Path),
			Threshold: def.Threshold,
			Scale:     def.Scale,
		}
		if def.Region != nil {
			tmpl = tmpl.InRegion(def.Region.X1, def.Region.Y1, def.Region.X2, def.Region.Y2)
		}
		if err := validate(tmpl); err != nil {
			return err
		}
		parsed = append(parsed, entry{tmpl, def.Preload, def.Transient})
	}

	for _, e := range parsed {
		r.add(e.tmpl, e.preload, e.transient)
	}
	return nil
}

// LoadFromDirectory loads every .yaml and .yml file in a directory
func (r *Registry) LoadFromDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return apperr.Wrapf(err, apperr.KindConfig, "templates.LoadFromDirectory", "failed to read template directory %s", dir)
	}

	var failed []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := r.LoadFromFile(filepath.Join(dir, entry.Name())); err != nil {
			failed = append(failed, fmt.Errorf("file %s: %w", entry.Name(), err))
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to load %d template files (first error): %w", len(failed), failed[0])
	}
	return nil
}

// Register adds a template programmatically
func (r *Registry) Register(tmpl cv.Template) error {
	if tmpl.Name == "" {
		return apperr.Config("templates.Register", "template name cannot be empty")
	}
	if err := validate(tmpl); err != nil {
		return err
	}
	r.add(tmpl, false, false)
	return nil
}

func (r *Registry) add(tmpl cv.Template, preload, transient bool) {
	r.mu.Lock()
	r.templates[tmpl.Name] = tmpl
	r.mu.Unlock()

	if err := r.cache.Register(tmpl, preload, transient); err != nil {
		// Still loadable on demand; the locator reports it if it stays broken
		r.logger.Warn(err.Error())
	}
}

func (r *Registry) resolve(path string) string {
	if filepath.IsAbs(path) || r.basePath == "" {
		return path
	}
	return filepath.Join(r.basePath, path)
}

func validate(tmpl cv.Template) error {
	const op = "templates.validate"
	switch {
	case tmpl.Threshold < 0 || tmpl.Threshold >= 1:
		return apperr.Config(op, "template %s: threshold %.3f must be in (0,1)", tmpl.Name, tmpl.Threshold)
	case tmpl.Scale < 0:
		return apperr.Config(op, "template %s: scale %.2f must be positive", tmpl.Name, tmpl.Scale)
	case tmpl.Region != nil && tmpl.Region.Empty():
		return apperr.Config(op, "template %s: empty region %s", tmpl.Name, tmpl.Region)
	}
	return nil
}

// Get retrieves a template by name
func (r *Registry) Get(name string) (cv.Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tmpl, ok := r.templates[name]
	return tmpl, ok
}

// Ensure returns the named template. An undefined name is registered as
// <basePath>/<name>.png with default matching settings, so a bare image in
// the templates directory needs no YAML entry.
func (r *Registry) Ensure(name string) cv.Template {
	if tmpl, ok := r.Get(name); ok {
		return tmpl
	}
	tmpl := cv.Template{Name: name, Path: r.resolve(name + ".png")}
	r.add(tmpl, false, false)
	return tmpl
}

// Has checks if a template exists
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns the template names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of templates
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

// Locator builds an icon locator for a named template. The template's own
// threshold and region apply first; opts override them.
func (r *Registry) Locator(name string, opts ...cv.Option) (*cv.Locator, error) {
	img, tmpl, err := r.cache.Get(name)
	if err != nil {
		return nil, err
	}
	defer r.cache.Release(name)

	all := append(tmpl.LocatorOptions(), opts...)
	return cv.NewLocator(img, all...)
}

// PreloadAll decodes every template marked for preloading
func (r *Registry) PreloadAll() error {
	return r.cache.PreloadAll()
}

// UnloadAll drops every cached bitmap
func (r *Registry) UnloadAll() {
	r.cache.UnloadAll()
}

// CacheStats returns image cache statistics
func (r *Registry) CacheStats() CacheStats {
	return r.cache.Stats()
}
