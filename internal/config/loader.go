package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"jordanella.com/profile-swiper/internal/apperr"
)

// Environment variables that override Settings.ini
const (
	EnvADBPath  = "SWIPER_ADB_PATH"
	EnvSerial   = "SWIPER_SERIAL"
	EnvLogLevel = "SWIPER_LOG_LEVEL"
)

// LoadFromINI loads configuration from a Settings.ini file. Missing keys keep
// their defaults; malformed values are a configuration error.
func LoadFromINI(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.KindConfig, "config.LoadFromINI", "failed to load config file %s", path)
	}

	config := NewDefaultConfig()
	r := &reader{file: file}

	// Device
	section := file.Section("Device")
	config.Device.ADBPath = section.Key("adb_path").MustString(config.Device.ADBPath)
	config.Device.Serial = section.Key("serial").MustString(config.Device.Serial)
	config.Device.Connect = r.boolean("Device", "connect", config.Device.Connect)
	config.Device.ScreencapTimeout = r.millis("Device", "screencap_timeout_ms", config.Device.ScreencapTimeout)

	// Paths
	section = file.Section("Paths")
	config.Paths.LikedDir = section.Key("liked_dir").MustString(config.Paths.LikedDir)
	config.Paths.DislikedDir = section.Key("disliked_dir").MustString(config.Paths.DislikedDir)
	config.Paths.WorkspaceDir = section.Key("workspace_dir").MustString(config.Paths.WorkspaceDir)
	config.Paths.CountersFile = section.Key("counters_file").MustString(config.Paths.CountersFile)
	config.Paths.GesturesFile = section.Key("gestures_file").MustString(config.Paths.GesturesFile)
	config.Paths.TemplatesFile = section.Key("templates_file").MustString(config.Paths.TemplatesFile)
	config.Paths.TemplatesDir = section.Key("templates_dir").MustString(config.Paths.TemplatesDir)
	config.Paths.IconCropsDir = section.Key("icon_crops_dir").MustString(config.Paths.IconCropsDir)

	// Walker
	section = file.Section("Walker")
	config.Walker.MaxPhotos = r.integer("Walker", "max_photos", config.Walker.MaxPhotos)
	config.Walker.MaxCaptures = r.integer("Walker", "max_captures", config.Walker.MaxCaptures)
	config.Walker.DelayMin = r.millis("Walker", "delay_min_ms", config.Walker.DelayMin)
	config.Walker.DelayMax = r.millis("Walker", "delay_max_ms", config.Walker.DelayMax)
	// An explicitly empty crop_box keeps the full screen
	if section.HasKey("crop_box") {
		config.Walker.CropBox = section.Key("crop_box").String()
	}
	config.Walker.SkipPrompts = r.boolean("Walker", "skip_prompts", config.Walker.SkipPrompts)
	config.Walker.SkipGrayscale = r.boolean("Walker", "skip_grayscale", config.Walker.SkipGrayscale)
	config.Walker.IconMode = r.boolean("Walker", "icon_mode", config.Walker.IconMode)
	config.Walker.WorkspaceNaming = section.Key("workspace_naming").MustString(config.Walker.WorkspaceNaming)

	// Locator
	section = file.Section("Locator")
	config.Locator.Template = section.Key("template").MustString(config.Locator.Template)
	config.Locator.Threshold = r.float("Locator", "threshold", config.Locator.Threshold)
	config.Locator.SuppressionRadius = r.float("Locator", "suppression_radius", config.Locator.SuppressionRadius)
	config.Locator.MaxMatches = r.integer("Locator", "max_matches", config.Locator.MaxMatches)
	config.Locator.CropMargin = r.integer("Locator", "crop_margin", config.Locator.CropMargin)

	// Classifier
	section = file.Section("Classifier")
	config.Classifier.PromptLandmark = section.Key("prompt_landmark").MustString(config.Classifier.PromptLandmark)
	config.Classifier.PromptOffset = section.Key("prompt_offset").MustString(config.Classifier.PromptOffset)
	config.Classifier.PromptBox = section.Key("prompt_box").MustString(config.Classifier.PromptBox)
	config.Classifier.Brightness = r.float("Classifier", "brightness", config.Classifier.Brightness)
	config.Classifier.GrayCenter = section.Key("gray_center").MustString(config.Classifier.GrayCenter)
	config.Classifier.GrayBox = r.integer("Classifier", "gray_box", config.Classifier.GrayBox)
	config.Classifier.GrayTolerance = r.integer("Classifier", "gray_tolerance", config.Classifier.GrayTolerance)
	config.Classifier.GrayRatio = r.float("Classifier", "gray_ratio", config.Classifier.GrayRatio)

	// Comparator
	section = file.Section("Comparator")
	config.Comparator.Strategy = section.Key("strategy").MustString(config.Comparator.Strategy)
	config.Comparator.PixelThreshold = r.float("Comparator", "pixel_threshold", config.Comparator.PixelThreshold)
	config.Comparator.HistogramThreshold = r.float("Comparator", "histogram_threshold", config.Comparator.HistogramThreshold)
	config.Comparator.PHashDistance = r.integer("Comparator", "phash_distance", config.Comparator.PHashDistance)

	// Session
	section = file.Section("Session")
	config.Session.AutoRejectSingle = r.boolean("Session", "auto_reject_single", config.Session.AutoRejectSingle)
	config.Session.LabelImages = r.boolean("Session", "label_images", config.Session.LabelImages)
	config.Session.MaxProfiles = r.integer("Session", "max_profiles", config.Session.MaxProfiles)
	config.Session.Decisions = section.Key("decisions").MustString(config.Session.Decisions)

	// Logging
	section = file.Section("Logging")
	config.Logging.Level = section.Key("level").MustString(config.Logging.Level)
	config.Logging.File = section.Key("file").MustString(config.Logging.File)

	if r.err != nil {
		return nil, r.err
	}
	return config, nil
}

// reader keeps the first malformed value. ini's MustInt would silently fall
// back to the default, which hides typos in thresholds.
type reader struct {
	file *ini.File
	err  error
}

func (r *reader) key(section, name string) *ini.Key {
	s := r.file.Section(section)
	if !s.HasKey(name) || strings.TrimSpace(s.Key(name).String()) == "" {
		return nil
	}
	return s.Key(name)
}

func (r *reader) fail(section, name string, err error) {
	if r.err == nil {
		r.err = apperr.Wrapf(err, apperr.KindConfig, "config.LoadFromINI", "[%s] %s", section, name)
	}
}

func (r *reader) integer(section, name string, def int) int {
	k := r.key(section, name)
	if k == nil {
		return def
	}
	v, err := k.Int()
	if err != nil {
		r.fail(section, name, err)
		return def
	}
	return v
}

func (r *reader) float(section, name string, def float64) float64 {
	k := r.key(section, name)
	if k == nil {
		return def
	}
	v, err := k.Float64()
	if err != nil {
		r.fail(section, name, err)
		return def
	}
	return v
}

func (r *reader) boolean(section, name string, def bool) bool {
	k := r.key(section, name)
	if k == nil {
		return def
	}
	v, err := k.Bool()
	if err != nil {
		r.fail(section, name, err)
		return def
	}
	return v
}

func (r *reader) millis(section, name string, def time.Duration) time.Duration {
	ms := r.integer(section, name, int(def/time.Millisecond))
	return time.Duration(ms) * time.Millisecond
}

// Load reads Settings.ini when it exists, falls back to defaults otherwise,
// then applies the environment and validates
func Load(path, envFile string) (*Config, error) {
	config := NewDefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if config, err = LoadFromINI(path); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.Wrapf(err, apperr.KindConfig, "config.Load", "stat %s", path)
		}
	}

	if err := config.ApplyEnv(envFile); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv loads envFile (if present) into the process environment and
// applies the SWIPER_* overrides. Variables already set take precedence over
// the file, as godotenv.Load does.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return apperr.Wrapf(err, apperr.KindConfig, "config.ApplyEnv", "failed to load %s", envFile)
		}
	}

	if v := os.Getenv(EnvADBPath); v != "" {
		c.Device.ADBPath = v
	}
	if v := os.Getenv(EnvSerial); v != "" {
		c.Device.Serial = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// SaveToINI saves configuration to a Settings.ini file
func SaveToINI(config *Config, path string) error {
	file := ini.Empty()

	section := file.Section("Device")
	section.Key("adb_path").SetValue(config.Device.ADBPath)
	section.Key("serial").SetValue(config.Device.Serial)
	section.Key("connect").SetValue(fmt.Sprintf("%t", config.Device.Connect))
	section.Key("screencap_timeout_ms").SetValue(millis(config.Device.ScreencapTimeout))

	section = file.Section("Paths")
	section.Key("liked_dir").SetValue(config.Paths.LikedDir)
	section.Key("disliked_dir").SetValue(config.Paths.DislikedDir)
	section.Key("workspace_dir").SetValue(config.Paths.WorkspaceDir)
	section.Key("counters_file").SetValue(config.Paths.CountersFile)
	section.Key("gestures_file").SetValue(config.Paths.GesturesFile)
	section.Key("templates_file").SetValue(config.Paths.TemplatesFile)
	section.Key("templates_dir").SetValue(config.Paths.TemplatesDir)
	section.Key("icon_crops_dir").SetValue(config.Paths.IconCropsDir)

	section = file.Section("Walker")
	section.Key("max_photos").SetValue(fmt.Sprintf("%d", config.Walker.MaxPhotos))
	section.Key("max_captures").SetValue(fmt.Sprintf("%d", config.Walker.MaxCaptures))
	section.Key("delay_min_ms").SetValue(millis(config.Walker.DelayMin))
	section.Key("delay_max_ms").SetValue(millis(config.Walker.DelayMax))
	section.Key("crop_box").SetValue(config.Walker.CropBox)
	section.Key("skip_prompts").SetValue(fmt.Sprintf("%t", config.Walker.SkipPrompts))
	section.Key("skip_grayscale").SetValue(fmt.Sprintf("%t", config.Walker.SkipGrayscale))
	section.Key("icon_mode").SetValue(fmt.Sprintf("%t", config.Walker.IconMode))
	section.Key("workspace_naming").SetValue(config.Walker.WorkspaceNaming)

	section = file.Section("Locator")
	section.Key("template").SetValue(config.Locator.Template)
	section.Key("threshold").SetValue(fmt.Sprintf("%g", config.Locator.Threshold))
	section.Key("suppression_radius").SetValue(fmt.Sprintf("%g", config.Locator.SuppressionRadius))
	section.Key("max_matches").SetValue(fmt.Sprintf("%d", config.Locator.MaxMatches))
	section.Key("crop_margin").SetValue(fmt.Sprintf("%d", config.Locator.CropMargin))

	section = file.Section("Classifier")
	section.Key("prompt_landmark").SetValue(config.Classifier.PromptLandmark)
	section.Key("prompt_offset").SetValue(config.Classifier.PromptOffset)
	section.Key("prompt_box").SetValue(config.Classifier.PromptBox)
	section.Key("brightness").SetValue(fmt.Sprintf("%g", config.Classifier.Brightness))
	section.Key("gray_center").SetValue(config.Classifier.GrayCenter)
	section.Key("gray_box").SetValue(fmt.Sprintf("%d", config.Classifier.GrayBox))
	section.Key("gray_tolerance").SetValue(fmt.Sprintf("%d", config.Classifier.GrayTolerance))
	section.Key("gray_ratio").SetValue(fmt.Sprintf("%g", config.Classifier.GrayRatio))

	section = file.Section("Comparator")
	section.Key("strategy").SetValue(config.Comparator.Strategy)
	section.Key("pixel_threshold").SetValue(fmt.Sprintf("%g", config.Comparator.PixelThreshold))
	section.Key("histogram_threshold").SetValue(fmt.Sprintf("%g", config.Comparator.HistogramThreshold))
	section.Key("phash_distance").SetValue(fmt.Sprintf("%d", config.Comparator.PHashDistance))

	section = file.Section("Session")
	section.Key("auto_reject_single").SetValue(fmt.Sprintf("%t", config.Session.AutoRejectSingle))
	section.Key("label_images").SetValue(fmt.Sprintf("%t", config.Session.LabelImages))
	section.Key("max_profiles").SetValue(fmt.Sprintf("%d", config.Session.MaxProfiles))
	section.Key("decisions").SetValue(config.Session.Decisions)

	section = file.Section("Logging")
	section.Key("level").SetValue(config.Logging.Level)
	section.Key("file").SetValue(config.Logging.File)

	if err := file.SaveTo(path); err != nil {
		return apperr.Wrapf(err, apperr.KindConfig, "config.SaveToINI", "failed to write %s", path)
	}
	return nil
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%d", d/time.Millisecond)
}
