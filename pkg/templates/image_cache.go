package templates

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"jordanella.com/profile-swiper/internal/apperr"
	"jordanella.com/profile-swiper/internal/cv"
)

// cachedTemplate is a template plus its decoded, scaled bitmap
type cachedTemplate struct {
	cv.Template
	mu        sync.Mutex
	image     *image.RGBA
	preload   bool
	transient bool // Drop the bitmap on Release
}

// ImageCache decodes template images once and hands out the bitmap
type ImageCache struct {
	mu        sync.RWMutex
	templates map[string]*cachedTemplate
	stats     CacheStats
}

// CacheStats tracks cache performance
type CacheStats struct {
	Hits        int64 // Bitmap was already decoded
	Misses      int64 // Had to decode
	Unloads     int64
	PreloadFail int64
}

// NewImageCache creates an empty cache
func NewImageCache() *ImageCache {
	return &ImageCache{templates: make(map[string]*cachedTemplate)}
}

// Register adds a template, decoding it immediately when preload is set. A
// failed preload keeps the registration.
func (c *ImageCache) Register(tmpl cv.Template, preload, transient bool) error {
	cached := &cachedTemplate{Template: tmpl, preload: preload, transient: transient}

	c.mu.Lock()
	c.templates[tmpl.Name] = cached
	c.mu.Unlock()

	if preload {
		if _, _, err := cached.get(); err != nil {
			c.count(func(s *CacheStats) { s.PreloadFail++ })
			return fmt.Errorf("failed to preload template %s: %w", tmpl.Name, err)
		}
	}
	return nil
}

// Get returns the bitmap of a template, decoding it if needed
func (c *ImageCache) Get(name string) (*image.RGBA, cv.Template, error) {
	c.mu.RLock()
	cached, ok := c.templates[name]
	c.mu.RUnlock()
	if !ok {
		return nil, cv.Template{}, apperr.Config("templates.Get", "template %q not registered", name)
	}

	img, hit, err := cached.get()
	if err != nil {
		return nil, cv.Template{}, err
	}
	c.count(func(s *CacheStats) {
		if hit {
			s.Hits++
		} else {
			s.Misses++
		}
	})
	return img, cached.Template, nil
}

// Release drops the bitmap of a transient template
func (c *ImageCache) Release(name string) {
	c.mu.RLock()
	cached, ok := c.templates[name]
	c.mu.RUnlock()

	if ok && cached.transient && cached.unload() {
		c.count(func(s *CacheStats) { s.Unloads++ })
	}
}

// PreloadAll decodes every template registered with preload
func (c *ImageCache) PreloadAll() error {
	var failed []error
	for _, cached := range c.snapshot() {
		if !cached.preload {
			continue
		}
		if _, _, err := cached.get(); err != nil {
			failed = append(failed, fmt.Errorf("template %s: %w", cached.Name, err))
			c.count(func(s *CacheStats) { s.PreloadFail++ })
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to preload %d templates: %w", len(failed), failed[0])
	}
	return nil
}

// UnloadAll drops every decoded bitmap
func (c *ImageCache) UnloadAll() {
	for _, cached := range c.snapshot() {
		if cached.unload() {
			c.count(func(s *CacheStats) { s.Unloads++ })
		}
	}
}

// Stats returns cache statistics
func (c *ImageCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *ImageCache) snapshot() []*cachedTemplate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := make([]*cachedTemplate, 0, len(c.templates))
	for _, t := range c.templates {
		list = append(list, t)
	}
	return list
}

func (c *ImageCache) count(fn func(*CacheStats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

// get returns the bitmap and whether it was already decoded
func (ct *cachedTemplate) get() (*image.RGBA, bool, error) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if ct.image != nil {
		return ct.image, true, nil
	}
	img, err := Load(ct.Path, ct.Scale)
	if err != nil {
		return nil, false, err
	}
	ct.image = img
	return img, false, nil
}

func (ct *cachedTemplate) unload() bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	loaded := ct.image != nil
	ct.image = nil
	return loaded
}

// Load decodes a PNG, JPEG, BMP or WebP file into RGBA. A scale other than
// 0 or 1 resizes it, for templates captured at a different screen density.
func Load(path string, scale float64) (*image.RGBA, error) {
	const op = "templates.Load"

	file, err := os.Open(path)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.KindInput, op, "template image not readable: %s", path)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.KindInput, op, "failed to decode template %s", path)
	}

	if scale > 0 && scale != 1 {
		w := uint(float64(img.Bounds().Dx())*scale + 0.5)
		if w == 0 {
			return nil, apperr.Input(op, "template %s vanishes at scale %.2f", path, scale)
		}
		img = resize.Resize(w, 0, img, resize.Bilinear)
	}

	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba, nil
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba, nil
}
