package templates

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jordanella.com/profile-swiper/internal/apperr"
	"jordanella.com/profile-swiper/internal/cv"
)

// checker returns a size*size checkerboard icon with 2px cells
func checker(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8(0)
			if (x/2+y/2)%2 == 0 {
				v = 255
			}
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestParseAndLocate(t *testing.T) {
	dir := t.TempDir()
	icon := checker(8)
	writePNG(t, filepath.Join(dir, "heart.png"), icon)

	r := NewRegistry(dir)
	err := r.Parse([]byte(`
templates:
  - name: heart
    path: heart.png
    threshold: 0.95
    preload: true
  - name: bounded
    path: heart.png
    region: {x1: 0, y1: 0, x2: 20, y2: 20}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := r.List(); len(got) != 2 || got[0] != "bounded" || got[1] != "heart" {
		t.Errorf("List = %v", got)
	}
	tmpl, ok := r.Get("heart")
	if !ok || tmpl.Path != filepath.Join(dir, "heart.png") || tmpl.Threshold != 0.95 {
		t.Errorf("heart = %+v, %v", tmpl, ok)
	}

	scene := image.NewRGBA(image.Rect(0, 0, 60, 40))
	for i := range scene.Pix {
		scene.Pix[i] = 128
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			scene.SetRGBA(30+x, 10+y, icon.RGBAAt(x, y))
		}
	}
	frame, err := cv.NewFrame(scene, 1, time.Time{})
	if err != nil {
		t.Fatal(err)
	}

	loc, err := r.Locator("heart")
	if err != nil {
		t.Fatalf("Locator: %v", err)
	}
	matches, err := loc.Locate(frame)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(matches) != 1 || matches[0].X != 30 || matches[0].Y != 10 {
		t.Errorf("matches = %+v", matches)
	}

	// The region keeps the search away from the icon
	bounded, err := r.Locator("bounded")
	if err != nil {
		t.Fatalf("Locator: %v", err)
	}
	if matches, _ := bounded.Locate(frame); len(matches) != 0 {
		t.Errorf("bounded matches = %+v", matches)
	}

	if stats := r.CacheStats(); stats.Hits < 1 {
		t.Errorf("preloaded template should hit the cache: %+v", stats)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "templates:\n  - path: a.png\n"},
		{"missing path", "templates:\n  - name: a\n"},
		{"duplicate", "templates:\n  - {name: a, path: a.png}\n  - {name: a, path: b.png}\n"},
		{"exact threshold", "templates:\n  - {name: a, path: a.png, threshold: 1.0}\n"},
		{"empty region", "templates:\n  - name: a\n    path: a.png\n    region: {x1: 5, y1: 5, x2: 5, y2: 9}\n"},
		{"bad yaml", "templates: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(t.TempDir())
			if err := r.Parse([]byte(tt.yaml)); !apperr.IsConfig(err) {
				t.Errorf("expected configuration error, got %v", err)
			}
			if r.Count() != 0 {
				t.Errorf("registered %d templates from invalid file", r.Count())
			}
		})
	}
}

func TestLocatorUnknownAndUnreadable(t *testing.T) {
	r := NewRegistry(t.TempDir())
	if _, err := r.Locator("nope"); !apperr.IsConfig(err) {
		t.Errorf("unknown template: got %v", err)
	}

	if err := r.Register(cv.Template{Name: "ghost", Path: "ghost.png"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Locator("ghost"); !apperr.IsInput(err) {
		t.Errorf("missing image: got %v", err)
	}
}

func TestLoadScales(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icon.png")
	writePNG(t, path, checker(20))

	img, err := Load(path, 0.5)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 10 || b.Dy() != 10 {
		t.Errorf("scaled bounds = %v", b)
	}

	img, err = Load(path, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 20 {
		t.Errorf("unscaled bounds = %v", b)
	}
}

func TestTransientRelease(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "x.png"), checker(6))

	r := NewRegistry(dir)
	if err := r.Parse([]byte("templates:\n  - {name: x, path: x.png, unload_after: true}\n")); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := r.Locator("x"); err != nil {
			t.Fatalf("Locator: %v", err)
		}
	}
	stats := r.CacheStats()
	if stats.Misses != 2 || stats.Unloads != 2 {
		t.Errorf("stats = %+v", stats)
	}

	if !r.Has("x") || r.Has("y") {
		t.Error("Has reports the wrong templates")
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "icons.yaml"), []byte("templates:\n  - {name: a, path: a.png}\n"), 0644)
	os.WriteFile(filepath.Join(dir, "more.yml"), []byte("templates:\n  - {name: b, path: b.png}\n"), 0644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644)

	r := NewRegistry(dir)
	if err := r.LoadFromDirectory(dir); err != nil {
		t.Fatalf("LoadFromDirectory: %v", err)
	}
	if r.Count() != 2 {
		t.Errorf("Count = %d", r.Count())
	}
}

func TestPreloadAndUnloadAll(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), checker(6))

	r := NewRegistry(dir)
	if err := r.Parse([]byte("templates:\n  - {name: a, path: a.png, preload: true}\n  - {name: lazy, path: lazy.png}\n")); err != nil {
		t.Fatal(err)
	}
	if err := r.PreloadAll(); err != nil {
		t.Fatalf("PreloadAll: %v", err)
	}
	r.UnloadAll()
	if stats := r.CacheStats(); stats.Unloads != 1 || stats.PreloadFail != 0 {
		t.Errorf("stats = %+v", stats)
	}

	// A broken preload entry fails the whole preload
	os.Remove(filepath.Join(dir, "a.png"))
	if err := r.PreloadAll(); !apperr.IsInput(err) {
		t.Errorf("expected input error, got %v", err)
	}
}

func TestOpenRegistry(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "icons.yaml"), []byte("templates:\n  - {name: a, path: a.png}\n"), 0644)
	other := filepath.Join(t.TempDir(), "only.yaml")
	os.WriteFile(other, []byte("templates:\n  - {name: b, path: b.png}\n"), 0644)

	r, err := OpenRegistry(dir, "")
	if err != nil {
		t.Fatalf("OpenRegistry(dir): %v", err)
	}
	if !r.Has("a") {
		t.Errorf("directory templates = %v", r.List())
	}

	r, err = OpenRegistry(dir, other)
	if err != nil {
		t.Fatalf("OpenRegistry(file): %v", err)
	}
	if r.Has("a") || !r.Has("b") {
		t.Errorf("file templates = %v", r.List())
	}

	r, err = OpenRegistry(filepath.Join(dir, "missing"), "")
	if err != nil {
		t.Fatalf("OpenRegistry(missing): %v", err)
	}
	if r.Count() != 0 {
		t.Errorf("missing directory templates = %v", r.List())
	}
}

func TestEnsure(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "like_button.png"), checker(8))

	r := NewRegistry(dir)
	tmpl := r.Ensure("like_button")
	if tmpl.Path != filepath.Join(dir, "like_button.png") || !r.Has("like_button") {
		t.Errorf("default template = %+v", tmpl)
	}
	if _, err := r.Locator("like_button"); err != nil {
		t.Errorf("Locator: %v", err)
	}
}
