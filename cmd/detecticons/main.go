// Command detecticons runs the icon locator on one screenshot (or a fresh
// device capture) and prints the matches. Crops of each match can be
// written out for building labeled sets.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"jordanella.com/profile-swiper/internal/adb"
	"jordanella.com/profile-swiper/internal/config"
	"jordanella.com/profile-swiper/internal/cv"
	"jordanella.com/profile-swiper/internal/logging"
	"jordanella.com/profile-swiper/internal/workspace"
	"jordanella.com/profile-swiper/pkg/templates"
)

func main() {
	configPath := flag.String("config", "Settings.ini", "Path to Settings.ini")
	imagePath := flag.String("image", "", "Screenshot to search (captures from the device when empty)")
	templatePath := flag.String("template", "", "Template image; overrides the configured registry template")
	threshold := flag.Float64("threshold", 0, "Match threshold override")
	outDir := flag.String("out", "", "Directory for match crops (defaults to icon_crops_dir)")
	list := flag.Bool("list", false, "List the registered templates and exit")
	flag.Parse()

	logging.Configure(logging.Options{Level: logging.LogLevelInfo})
	logger := logging.NewLogger("DetectIcons")

	cfg, err := config.Load(*configPath, "")
	if err != nil {
		logger.Error("Failed to load configuration", err)
		os.Exit(2)
	}
	if *list {
		if err := listTemplates(cfg); err != nil {
			logger.Error("Failed to load templates", err)
			os.Exit(2)
		}
		return
	}
	if *threshold > 0 {
		cfg.Locator.Threshold = *threshold
	}
	if *outDir != "" {
		cfg.Paths.IconCropsDir = *outDir
	}

	frame, err := loadFrame(cfg, *imagePath)
	if err != nil {
		logger.Error("Failed to get screenshot", err)
		os.Exit(1)
	}

	loc, err := locator(cfg, *templatePath)
	if err != nil {
		logger.Error("Failed to prepare locator", err)
		os.Exit(2)
	}

	tw, th := loc.TemplateSize()
	start := time.Now()
	matches, err := loc.Locate(frame)
	if err != nil {
		// Matches are still valid when only the crop sink failed
		logger.Error("Locate reported an error", err)
	}
	logger.InfoWithContext("Search finished", map[string]interface{}{
		"matches":  len(matches),
		"template": fmt.Sprintf("%dx%d", tw, th),
		"duration": time.Since(start).String(),
	})

	for i, m := range matches {
		c := m.Center()
		fmt.Printf("%d: rect=%v center=(%d,%d) score=%.4f\n", i+1, m.Rect(), c.X, c.Y, m.Score)
	}
}

func loadFrame(cfg *config.Config, path string) (*cv.Frame, error) {
	if path == "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Device.ScreencapTimeout)
		defer cancel()
		ctrl, err := adb.ConnectADB(ctx, adb.ConnectOptions{
			ADBPath: cfg.Device.ADBPath,
			Serial:  cfg.Device.Serial,
			Timeout: cfg.Device.ScreencapTimeout,
			Network: cfg.Device.Connect,
		})
		if err != nil {
			return nil, err
		}
		return ctrl.Capture(ctx)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return cv.NewFrame(img, 0, time.Now())
}

func locator(cfg *config.Config, templatePath string) (*cv.Locator, error) {
	opts := cfg.LocatorOptions()
	if cfg.Paths.IconCropsDir != "" {
		opts = append(opts, cv.WithCropSink(workspace.DirSink{Dir: cfg.Paths.IconCropsDir}))
	}

	if templatePath != "" {
		img, err := templates.Load(templatePath, 0)
		if err != nil {
			return nil, err
		}
		return cv.NewLocator(img, opts...)
	}

	registry, err := templates.OpenRegistry(cfg.Paths.TemplatesDir, cfg.Paths.TemplatesFile)
	if err != nil {
		return nil, err
	}
	tmpl := registry.Ensure(cfg.Locator.Template)
	fmt.Printf("template %s: %s\n", tmpl.Name, tmpl.Path)
	return registry.Locator(tmpl.Name, opts...)
}

func listTemplates(cfg *config.Config) error {
	registry, err := templates.OpenRegistry(cfg.Paths.TemplatesDir, cfg.Paths.TemplatesFile)
	if err != nil {
		return err
	}
	for _, name := range registry.List() {
		tmpl, _ := registry.Get(name)
		marker := " "
		if name == cfg.Locator.Template {
			marker = "*"
		}
		fmt.Printf("%s %-20s %s\n", marker, name, tmpl.Path)
	}
	return nil
}
