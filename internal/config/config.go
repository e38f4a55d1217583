package config

import (
	"image"
	"strings"
	"time"

	"jordanella.com/profile-swiper/internal/apperr"
	"jordanella.com/profile-swiper/internal/cv"
	"jordanella.com/profile-swiper/internal/decision"
	"jordanella.com/profile-swiper/internal/logging"
	"jordanella.com/profile-swiper/internal/session"
	"jordanella.com/profile-swiper/internal/walker"
	"jordanella.com/profile-swiper/internal/workspace"
)

// DeviceConfig selects the adb binary and device
type DeviceConfig struct {
	ADBPath          string
	Serial           string
	Connect          bool // Run `adb connect` for host:port serials
	ScreencapTimeout time.Duration
}

// PathsConfig holds every file and directory the swiper touches
type PathsConfig struct {
	LikedDir      string
	DislikedDir   string
	WorkspaceDir  string
	CountersFile  string
	GesturesFile  string // Optional YAML gesture table
	TemplatesFile string // Optional YAML template registry
	TemplatesDir  string // Base directory for template images
	IconCropsDir  string // Optional sink for located icon crops
}

// WalkerSettings configures the carousel walk
type WalkerSettings struct {
	MaxPhotos       int
	MaxCaptures     int
	DelayMin        time.Duration
	DelayMax        time.Duration
	CropBox         string // "left,top,right,bottom"; empty keeps the full screen
	SkipPrompts     bool
	SkipGrayscale   bool
	IconMode        bool
	WorkspaceNaming string
}

// LocatorSettings configures the icon locator
type LocatorSettings struct {
	Template          string // Name in the template registry
	Threshold         float64
	SuppressionRadius float64
	MaxMatches        int
	CropMargin        int
}

// ClassifierSettings configures the prompt and grayscale predicates
type ClassifierSettings struct {
	PromptLandmark string // "x,y"
	PromptOffset   string // "dx,dy"
	PromptBox      string // "w,h"
	Brightness     float64
	GrayCenter     string // "x,y"
	GrayBox        int
	GrayTolerance  int
	GrayRatio      float64
}

// ComparatorSettings selects the similarity strategy
type ComparatorSettings struct {
	Strategy           string
	PixelThreshold     float64
	HistogramThreshold float64
	PHashDistance      int
}

// SessionSettings is the outer loop policy
type SessionSettings struct {
	AutoRejectSingle bool
	LabelImages      bool
	MaxProfiles      int
	Decisions        string // Scripted "like,dislike,..." instead of prompting
}

// LoggingSettings configures the component loggers
type LoggingSettings struct {
	Level string
	File  string
}

// Config is the whole Settings.ini
type Config struct {
	Device     DeviceConfig
	Paths      PathsConfig
	Walker     WalkerSettings
	Locator    LocatorSettings
	Classifier ClassifierSettings
	Comparator ComparatorSettings
	Session    SessionSettings
	Logging    LoggingSettings
}

// NewDefaultConfig creates a config with default values
func NewDefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Connect:          true,
			ScreencapTimeout: 10 * time.Second,
		},
		Paths: PathsConfig{
			LikedDir:     "data/liked",
			DislikedDir:  "data/disliked",
			WorkspaceDir: "data/tmp",
			CountersFile: "data/counters.json",
			TemplatesDir: "templates",
		},
		Walker: WalkerSettings{
			MaxPhotos:       walker.DefaultMaxPhotos,
			MaxCaptures:     walker.DefaultMaxCaptures,
			DelayMin:        walker.DefaultDelayMin,
			DelayMax:        walker.DefaultDelayMax,
			CropBox:         "30,302,1047,1331",
			SkipPrompts:     true,
			WorkspaceNaming: string(workspace.NamingUUID),
		},
		Locator: LocatorSettings{
			Template:          "like_button",
			Threshold:         cv.DefaultMatchThreshold,
			SuppressionRadius: cv.DefaultSuppressionRadius,
			MaxMatches:        cv.DefaultMaxMatches,
			CropMargin:        cv.DefaultCropMargin,
		},
		Classifier: ClassifierSettings{
			PromptLandmark: "655,1745",
			PromptOffset:   "-60,-10",
			PromptBox:      "40,20",
			Brightness:     cv.DefaultPromptBrightness,
			GrayCenter:     "538,816",
			GrayBox:        cv.DefaultGrayBox,
			GrayTolerance:  cv.DefaultGrayTolerance,
			GrayRatio:      cv.DefaultGrayRatio,
		},
		Comparator: ComparatorSettings{
			Strategy:           string(cv.StrategyHistogram),
			PixelThreshold:     cv.DefaultPixelThreshold,
			HistogramThreshold: cv.DefaultHistogramThreshold,
			PHashDistance:      cv.DefaultPHashDistance,
		},
		Session: SessionSettings{
			AutoRejectSingle: true,
		},
		Logging: LoggingSettings{
			Level: string(logging.LogLevelInfo),
		},
	}
}

// Validate checks every setting that the builders would otherwise reject
// later, so a bad Settings.ini fails at startup
func (c *Config) Validate() error {
	const op = "config.Validate"

	switch {
	case c.Paths.LikedDir == "" || c.Paths.DislikedDir == "" || c.Paths.WorkspaceDir == "":
		return apperr.Config(op, "liked_dir, disliked_dir and workspace_dir are required")
	case c.Paths.CountersFile == "":
		return apperr.Config(op, "counters_file is required")
	case c.Device.ScreencapTimeout <= 0:
		return apperr.Config(op, "screencap_timeout_ms must be > 0")
	case c.Walker.MaxPhotos < 1:
		return apperr.Config(op, "max_photos %d must be >= 1", c.Walker.MaxPhotos)
	case c.Walker.MaxCaptures < 0:
		return apperr.Config(op, "max_captures %d must be >= 0", c.Walker.MaxCaptures)
	case c.Walker.DelayMin < 0 || c.Walker.DelayMax < c.Walker.DelayMin:
		return apperr.Config(op, "invalid delay range [%v, %v]", c.Walker.DelayMin, c.Walker.DelayMax)
	case c.Walker.IconMode && c.Locator.Template == "":
		return apperr.Config(op, "icon_mode needs a locator template")
	case c.Classifier.Brightness < 0 || c.Classifier.Brightness >= 255:
		return apperr.Config(op, "brightness %.1f must be in [0,255)", c.Classifier.Brightness)
	case c.Classifier.GrayBox <= 0:
		return apperr.Config(op, "gray_box %d must be > 0", c.Classifier.GrayBox)
	case c.Classifier.GrayTolerance <= 0 || c.Classifier.GrayTolerance > 255:
		return apperr.Config(op, "gray_tolerance %d must be in (0,255]", c.Classifier.GrayTolerance)
	case c.Classifier.GrayRatio <= 0 || c.Classifier.GrayRatio > 1:
		return apperr.Config(op, "gray_ratio %.2f must be in (0,1]", c.Classifier.GrayRatio)
	case c.Session.MaxProfiles < 0:
		return apperr.Config(op, "max_profiles %d must be >= 0", c.Session.MaxProfiles)
	case c.Locator.Threshold <= 0 || c.Locator.Threshold >= 1:
		return apperr.Config(op, "locator threshold %.3f must be in (0,1)", c.Locator.Threshold)
	case c.Locator.SuppressionRadius < 0:
		return apperr.Config(op, "suppression_radius must be >= 0")
	case c.Locator.MaxMatches <= 0:
		return apperr.Config(op, "max_matches must be > 0")
	case c.Locator.CropMargin < 0:
		return apperr.Config(op, "crop_margin must be >= 0")
	}

	if _, err := c.CropRegion(); err != nil {
		return err
	}
	if _, err := workspace.ParseNaming(c.Walker.WorkspaceNaming); err != nil {
		return err
	}
	if _, err := c.PromptDetector(); err != nil {
		return err
	}
	if _, err := c.GrayscaleDetector(); err != nil {
		return err
	}
	if _, err := cv.NewComparator(c.ComparatorConfig()); err != nil {
		return err
	}
	if _, err := c.ScriptedDecisions(); err != nil {
		return err
	}
	if !validLevel(c.Logging.Level) {
		return apperr.Config(op, "unknown log level %q", c.Logging.Level)
	}
	return nil
}

func validLevel(s string) bool {
	switch logging.LogLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case logging.LogLevelDebug, logging.LogLevelInfo, logging.LogLevelWarn, logging.LogLevelError:
		return true
	}
	return false
}

// CropRegion parses crop_box. An empty value returns nil.
func (c *Config) CropRegion() (*cv.Region, error) {
	if strings.TrimSpace(c.Walker.CropBox) == "" {
		return nil, nil
	}
	r, err := cv.ParseRegion(c.Walker.CropBox)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.KindConfig, "config.CropRegion", "crop_box %q", c.Walker.CropBox)
	}
	if r.Empty() {
		return nil, apperr.Config("config.CropRegion", "crop_box %q is empty", c.Walker.CropBox)
	}
	return &r, nil
}

// PromptDetector builds the prompt classifier
func (c *Config) PromptDetector() (cv.PromptDetector, error) {
	landmark, err := parsePoint("prompt_landmark", c.Classifier.PromptLandmark)
	if err != nil {
		return cv.PromptDetector{}, err
	}
	offset, err := parsePoint("prompt_offset", c.Classifier.PromptOffset)
	if err != nil {
		return cv.PromptDetector{}, err
	}
	size, err := parsePoint("prompt_box", c.Classifier.PromptBox)
	if err != nil {
		return cv.PromptDetector{}, err
	}
	if size.X <= 0 || size.Y <= 0 {
		return cv.PromptDetector{}, apperr.Config("config.PromptDetector", "prompt_box %q must be positive", c.Classifier.PromptBox)
	}
	return cv.PromptDetector{
		Landmark:   landmark,
		Offset:     offset,
		Size:       size,
		Brightness: c.Classifier.Brightness,
	}, nil
}

// GrayscaleDetector builds the grayscale classifier
func (c *Config) GrayscaleDetector() (cv.GrayscaleDetector, error) {
	center, err := parsePoint("gray_center", c.Classifier.GrayCenter)
	if err != nil {
		return cv.GrayscaleDetector{}, err
	}
	return cv.GrayscaleDetector{
		Center:    center,
		BoxSize:   c.Classifier.GrayBox,
		Tolerance: c.Classifier.GrayTolerance,
		Ratio:     c.Classifier.GrayRatio,
	}, nil
}

// ComparatorConfig maps the comparator section. An unknown strategy is left
// for cv.NewComparator to reject.
func (c *Config) ComparatorConfig() cv.ComparatorConfig {
	strategy, err := cv.ParseStrategy(c.Comparator.Strategy)
	if err != nil {
		strategy = cv.Strategy(c.Comparator.Strategy)
	}
	return cv.ComparatorConfig{
		Strategy:           strategy,
		PixelThreshold:     c.Comparator.PixelThreshold,
		HistogramThreshold: c.Comparator.HistogramThreshold,
		PHashDistance:      c.Comparator.PHashDistance,
	}
}

// LocatorOptions maps the locator section
func (c *Config) LocatorOptions() []cv.Option {
	return []cv.Option{
		cv.WithThreshold(c.Locator.Threshold),
		cv.WithSuppressionRadius(c.Locator.SuppressionRadius),
		cv.WithMaxMatches(c.Locator.MaxMatches),
		cv.WithCropMargin(c.Locator.CropMargin),
	}
}

// WalkerConfig maps the walker section
func (c *Config) WalkerConfig() (walker.Config, error) {
	crop, err := c.CropRegion()
	if err != nil {
		return walker.Config{}, err
	}
	return walker.Config{
		MaxPhotos:     c.Walker.MaxPhotos,
		MaxCaptures:   c.Walker.MaxCaptures,
		DelayMin:      c.Walker.DelayMin,
		DelayMax:      c.Walker.DelayMax,
		Crop:          crop,
		SkipPrompts:   c.Walker.SkipPrompts,
		SkipGrayscale: c.Walker.SkipGrayscale,
		IconMode:      c.Walker.IconMode,
	}, nil
}

// SessionConfig maps the session section; profiles are paced like photos
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		LikedDir:         c.Paths.LikedDir,
		DislikedDir:      c.Paths.DislikedDir,
		AutoRejectSingle: c.Session.AutoRejectSingle,
		MaxProfiles:      c.Session.MaxProfiles,
		DelayMin:         c.Walker.DelayMin,
		DelayMax:         c.Walker.DelayMax,
	}
}

// ScriptedDecisions returns the configured decision script, or nil when the
// swiper should prompt
func (c *Config) ScriptedDecisions() (*decision.Scripted, error) {
	if strings.TrimSpace(c.Session.Decisions) == "" {
		return nil, nil
	}
	return decision.ParseScript(c.Session.Decisions)
}

func parsePoint(key, value string) (image.Point, error) {
	p, err := cv.ParsePoint(value)
	if err != nil {
		return image.Point{}, apperr.Wrapf(err, apperr.KindConfig, "config", "%s %q", key, value)
	}
	return image.Point{X: p.X, Y: p.Y}, nil
}
