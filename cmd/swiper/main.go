// Command swiper walks dating-app profiles on an Android device, asks for a
// verdict on each and archives the photos under liked/disliked folders.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jordanella.com/profile-swiper/internal/adb"
	"jordanella.com/profile-swiper/internal/apperr"
	"jordanella.com/profile-swiper/internal/config"
	"jordanella.com/profile-swiper/internal/counters"
	"jordanella.com/profile-swiper/internal/cv"
	"jordanella.com/profile-swiper/internal/decision"
	"jordanella.com/profile-swiper/internal/gesture"
	"jordanella.com/profile-swiper/internal/logging"
	"jordanella.com/profile-swiper/internal/replay"
	"jordanella.com/profile-swiper/internal/session"
	"jordanella.com/profile-swiper/internal/walker"
	"jordanella.com/profile-swiper/internal/workspace"
	"jordanella.com/profile-swiper/pkg/templates"
)

// device is what the swiper needs from adb or a replay directory
type device interface {
	cv.FrameSource
	gesture.Device
}

// replayDevice pairs recorded screenshots with a gesture recorder
type replayDevice struct {
	*replay.Source
	*replay.Device
}

// options are the command line flags
type options struct {
	configPath  string
	envFile     string
	replayDir   string
	replayLoop  bool
	auto        string
	logLevel    string
	writeConfig string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "Settings.ini", "Path to Settings.ini (defaults apply when missing)")
	flag.StringVar(&opts.envFile, "env", ".env", "Optional .env file with SWIPER_* overrides")
	flag.StringVar(&opts.replayDir, "replay", "", "Replay screenshots from this directory instead of a device")
	flag.BoolVar(&opts.replayLoop, "replay-loop", false, "Start the replay over instead of stopping when it runs dry")
	flag.StringVar(&opts.auto, "auto", "", "Answer every profile with this verdict (like or dislike) without asking")
	flag.StringVar(&opts.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	flag.StringVar(&opts.writeConfig, "write-config", "", "Write the effective configuration to this path and exit")
	flag.Parse()

	os.Exit(run(opts))
}

func run(opts options) int {
	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 2
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	if opts.writeConfig != "" {
		if err := config.SaveToINI(cfg, opts.writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		fmt.Printf("Configuration written to %s\n", opts.writeConfig)
		return 0
	}

	closeLog, err := setupLogging(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		return 1
	}
	defer closeLog()

	logger := logging.NewLogger("Swiper")
	reporter := logging.NewErrorReporter(50)
	reporter.SetLogger(logger)
	reporter.OnError(logging.ErrorCategoryDevice, func(r *logging.ErrorReport) {
		logger.Warn("Check that the device is unlocked and `adb devices` lists it as \"device\"")
	})
	defer summarize(reporter, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, cleanup, err := build(ctx, cfg, opts, logger)
	if err != nil {
		reporter.Report("Swiper", "Startup failed", err, nil)
		return exitCode(err)
	}
	defer cleanup()

	logger.InfoWithContext("Swiper started", map[string]interface{}{
		"liked":    cfg.Paths.LikedDir,
		"disliked": cfg.Paths.DislikedDir,
		"strategy": cfg.Comparator.Strategy,
	})
	if err := runner.Run(ctx); err != nil {
		reporter.Report("Swiper", "Run stopped", err, nil)
		return exitCode(err)
	}
	return 0
}

// summarize logs what went wrong during the run, if anything
func summarize(reporter *logging.ErrorReporter, logger *logging.Logger) {
	stats := reporter.Stats()
	if len(stats) == 0 {
		return
	}
	fields := make(map[string]interface{}, len(stats))
	for category, n := range stats {
		fields[string(category)] = n
	}
	logger.InfoWithContext("Error summary", fields)
	for _, r := range reporter.Recent(3) {
		logger.InfoWithContext("Recent error", map[string]interface{}{
			"component": r.Component,
			"message":   r.Message,
			"error":     r.Err.Error(),
		})
	}
}

func setupLogging(cfg config.LoggingSettings) (func(), error) {
	opts := logging.Options{Level: logging.ParseLevel(cfg.Level)}
	var file io.Closer
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		opts.File = f
		file = f
	}
	logging.Configure(opts)
	return func() {
		if file != nil {
			file.Close()
		}
	}, nil
}

// build wires the session runner from the configuration
func build(ctx context.Context, cfg *config.Config, opts options, logger *logging.Logger) (*session.Runner, func(), error) {
	cleanup := func() {}

	dev, disconnect, err := openDevice(ctx, cfg, opts, logger)
	if err != nil {
		return nil, cleanup, err
	}
	cleanup = disconnect

	table := gesture.DefaultTable()
	if cfg.Paths.GesturesFile != "" {
		if table, err = gesture.LoadTable(cfg.Paths.GesturesFile); err != nil {
			return nil, cleanup, err
		}
	}
	if ctrl, ok := dev.(*adb.Controller); ok {
		if err := fitScreen(ctx, ctrl, cfg, table, logger); err != nil {
			return nil, cleanup, err
		}
	}
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	performer, err := gesture.NewPerformer(dev, table, rng)
	if err != nil {
		return nil, cleanup, err
	}

	w, err := buildWalker(cfg, dev, performer, logger)
	if err != nil {
		return nil, cleanup, err
	}

	naming, err := workspace.ParseNaming(cfg.Walker.WorkspaceNaming)
	if err != nil {
		return nil, cleanup, err
	}
	manager, err := workspace.NewManager(cfg.Paths.WorkspaceDir, naming)
	if err != nil {
		return nil, cleanup, err
	}
	store, err := counters.Open(cfg.Paths.CountersFile)
	if err != nil {
		return nil, cleanup, err
	}
	t := store.Tally()
	logger.InfoWithContext("Counters loaded", map[string]interface{}{
		"likes":    t.TotalLikes,
		"dislikes": t.TotalDislikes,
		"images":   t.TotalImages,
	})

	decider, labeler, err := deciders(cfg, opts.auto)
	if err != nil {
		return nil, cleanup, err
	}

	runner, err := session.NewRunner(cfg.SessionConfig(), manager, w, performer, decider, labeler, store)
	if err != nil {
		return nil, cleanup, err
	}
	return runner, cleanup, nil
}

func openDevice(ctx context.Context, cfg *config.Config, opts options, logger *logging.Logger) (device, func(), error) {
	if opts.replayDir != "" {
		src, err := replay.NewSource(opts.replayDir)
		if err != nil {
			return nil, nil, err
		}
		if opts.replayLoop {
			src.Loop()
		}
		rec := replay.NewDevice()
		return replayDevice{Source: src, Device: rec}, func() {}, nil
	}

	ctrl, err := adb.ConnectADB(ctx, adb.ConnectOptions{
		ADBPath: cfg.Device.ADBPath,
		Serial:  cfg.Device.Serial,
		Timeout: cfg.Device.ScreencapTimeout,
		Network: cfg.Device.Connect,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.InfoWithContext("Device ready", map[string]interface{}{"serial": ctrl.Serial()})
	return ctrl, func() {
		// The run context may already be cancelled
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ctrl.Disconnect(dctx)
	}, nil
}

func buildWalker(cfg *config.Config, src cv.FrameSource, g walker.Gesturer, logger *logging.Logger) (*walker.Walker, error) {
	wcfg, err := cfg.WalkerConfig()
	if err != nil {
		return nil, err
	}
	cmp, err := cv.NewComparator(cfg.ComparatorConfig())
	if err != nil {
		return nil, err
	}
	prompt, err := cfg.PromptDetector()
	if err != nil {
		return nil, err
	}
	gray, err := cfg.GrayscaleDetector()
	if err != nil {
		return nil, err
	}

	opts := []walker.Option{
		walker.WithPromptDetector(prompt),
		walker.WithGrayscaleDetector(gray),
	}
	if cfg.Walker.IconMode {
		loc, err := buildLocator(cfg, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, walker.WithLocator(loc))
		logger.InfoWithContext("Icon mode enabled", map[string]interface{}{"template": cfg.Locator.Template})
	}
	return walker.New(wcfg, src, g, cmp, opts...)
}

// fitScreen checks the crop box and gesture coordinates against the
// device's screen size
func fitScreen(ctx context.Context, ctrl *adb.Controller, cfg *config.Config, table gesture.Table, logger *logging.Logger) error {
	width, height, err := ctrl.WindowSize(ctx)
	if err != nil {
		return err
	}
	logger.InfoWithContext("Screen size", map[string]interface{}{"width": width, "height": height})

	crop, err := cfg.CropRegion()
	if err != nil {
		return err
	}
	if crop != nil && !crop.Rectangle().In(image.Rect(0, 0, width, height)) {
		return apperr.Config("swiper.fitScreen", "crop_box %s does not fit the %dx%d screen", crop, width, height)
	}
	return table.CheckBounds(width, height)
}

func buildLocator(cfg *config.Config, logger *logging.Logger) (*cv.Locator, error) {
	registry, err := templates.OpenRegistry(cfg.Paths.TemplatesDir, cfg.Paths.TemplatesFile)
	if err != nil {
		return nil, err
	}
	if err := registry.PreloadAll(); err != nil {
		return nil, err
	}

	name := cfg.Locator.Template
	if !registry.Has(name) {
		logger.InfoWithContext("Template not defined, using the bare image", map[string]interface{}{"template": name})
	}
	tmpl := registry.Ensure(name)

	opts := cfg.LocatorOptions()
	if cfg.Paths.IconCropsDir != "" {
		opts = append(opts, cv.WithCropSink(workspace.DirSink{Dir: cfg.Paths.IconCropsDir}))
	}
	loc, err := registry.Locator(name, opts...)
	if err != nil {
		return nil, err
	}

	// The locator keeps its own copy of the template
	registry.UnloadAll()
	w, h := loc.TemplateSize()
	stats := registry.CacheStats()
	logger.InfoWithContext("Locator ready", map[string]interface{}{
		"path":      tmpl.Path,
		"size":      fmt.Sprintf("%dx%d", w, h),
		"templates": registry.Count(),
		"unloaded":  stats.Unloads,
	})
	return loc, nil
}

// deciders returns the profile decider and the optional per-photo labeler
func deciders(cfg *config.Config, auto string) (decision.Decider, decision.Labeler, error) {
	if auto != "" {
		d, err := decision.ParseDecision(auto)
		if err != nil {
			return nil, nil, err
		}
		if d == decision.Skip {
			return nil, nil, apperr.Config("swiper.deciders", "-auto must be like or dislike")
		}
		return decision.Fixed(d), nil, nil
	}

	script, err := cfg.ScriptedDecisions()
	if err != nil {
		return nil, nil, err
	}
	if script != nil {
		// Headless runs never label
		return script, nil, nil
	}

	prompter := decision.NewPrompter(os.Stdin, os.Stdout)
	if cfg.Session.LabelImages {
		return prompter, prompter, nil
	}
	return prompter, nil, nil
}

func exitCode(err error) int {
	switch logging.Categorize(err) {
	case logging.ErrorCategoryCancelled:
		return 0
	case logging.ErrorCategoryConfig:
		return 2
	case logging.ErrorCategoryDevice:
		return 3
	default:
		if errors.Is(err, io.EOF) {
			return 0
		}
		return 1
	}
}
