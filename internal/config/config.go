package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mescon/beepwatch/internal/logger"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Audio backends accepted by AudioBackend.
const (
	AudioBell    = "bell"
	AudioSpeaker = "speaker"
	AudioNone    = "none"
)

const (
	DefaultPort                = "3095"
	DefaultRetentionDays       = 30
	DefaultMaintenanceSchedule = "0 3 * * *"
)

// Config is the process configuration: defaults, then BEEPWATCH_*
// environment variables, then the settings file, then command-line flags.
type Config struct {
	Port     string
	BasePath string // "/" or a path without trailing slash
	LogLevel string

	// Interval is the beep interval a new stopwatch starts with.
	Interval        time.Duration
	TickGranularity time.Duration
	// BeepFlash is how long the beeping flag stays set after a beep.
	BeepFlash time.Duration

	WakeLockEnabled bool
	AudioBackend    string

	// NotifyURLs are shoutrrr URLs pushed to on every beep, at most once per
	// NotifyThrottle each.
	NotifyURLs     []string
	NotifyThrottle time.Duration

	JournalEnabled bool
	// RetentionDays of journal history to keep; 0 keeps everything.
	RetentionDays       int
	MaintenanceSchedule string

	// APIKeyHash is a bcrypt hash of the API key; empty disables API auth.
	APIKeyHash string

	DataDir      string
	DatabasePath string
	LogDir       string
	SettingsPath string
	// WebDir serves the dashboard from disk instead of the embedded copy.
	WebDir string
}

var cfg *Config

// defaults returns the built-in configuration rooted at dataDir.
func defaults(dataDir string) Config {
	return Config{
		Port:                DefaultPort,
		BasePath:            "/",
		LogLevel:            "info",
		Interval:            DefaultInterval,
		TickGranularity:     10 * time.Millisecond,
		BeepFlash:           500 * time.Millisecond,
		WakeLockEnabled:     true,
		AudioBackend:        AudioBell,
		NotifyThrottle:      time.Minute,
		JournalEnabled:      true,
		RetentionDays:       DefaultRetentionDays,
		MaintenanceSchedule: DefaultMaintenanceSchedule,
		DataDir:             dataDir,
		DatabasePath:        filepath.Join(dataDir, "beepwatch.db"),
		LogDir:              filepath.Join(dataDir, "logs"),
		SettingsPath:        filepath.Join(dataDir, SettingsFileName),
	}
}

// defaultDataDir is the per-user config directory, or ./config without one.
func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "beepwatch")
	}
	return "config"
}

// Load builds the configuration and stores it for Get. Call once at startup.
func Load() *Config {
	return load(newEnv())
}

func load(e *env) *Config {
	dataDir := e.String("DATA_DIR", defaultDataDir())
	if abs, err := filepath.Abs(dataDir); err == nil {
		dataDir = abs
	}

	c := defaults(dataDir)
	c.Port = e.String("PORT", c.Port)
	c.BasePath = normalizeBasePath(e.String("BASE_PATH", c.BasePath))
	c.LogLevel = strings.ToLower(e.String("LOG_LEVEL", c.LogLevel))
	c.Interval = e.Duration("INTERVAL", c.Interval)
	c.TickGranularity = e.Duration("TICK", c.TickGranularity)
	c.BeepFlash = e.Duration("BEEP_FLASH", c.BeepFlash)
	c.WakeLockEnabled = e.Bool("WAKE_LOCK", c.WakeLockEnabled)
	c.AudioBackend = strings.ToLower(e.String("AUDIO", c.AudioBackend))
	c.NotifyURLs = e.List("NOTIFY_URLS")
	c.NotifyThrottle = e.Duration("NOTIFY_THROTTLE", c.NotifyThrottle)
	c.JournalEnabled = e.Bool("JOURNAL", c.JournalEnabled)
	c.RetentionDays = e.Int("RETENTION_DAYS", c.RetentionDays)
	c.MaintenanceSchedule = e.String("MAINTENANCE_SCHEDULE", c.MaintenanceSchedule)
	c.APIKeyHash = e.String("API_KEY_HASH", "")
	c.DatabasePath = e.String("DATABASE_PATH", c.DatabasePath)
	c.SettingsPath = e.String("SETTINGS_PATH", c.SettingsPath)
	c.WebDir = e.String("WEB_DIR", "")

	for _, bad := range e.rejected {
		logger.Warnf("Ignoring invalid %s", bad)
	}
	for _, dir := range []string{c.DataDir, c.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warnf("Cannot create %s: %v", dir, err)
		}
	}

	if settings, err := LoadSettings(c.SettingsPath); err != nil {
		logger.Warnf("Ignoring settings file %s: %v", c.SettingsPath, err)
	} else {
		c.applySettings(settings)
	}

	c.normalize()
	cfg = &c
	return cfg
}

// normalize replaces invalid values with their defaults.
func (c *Config) normalize() {
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		c.LogLevel = "info"
	}
	switch c.AudioBackend {
	case AudioBell, AudioSpeaker, AudioNone:
	default:
		c.AudioBackend = AudioBell
	}
	c.Interval = ClampInterval(c.Interval)
}

// Get returns the loaded configuration. It panics before Load.
func Get() *Config {
	if cfg == nil {
		panic("config.Load() must be called before config.Get()")
	}
	return cfg
}

// SetForTesting replaces the configuration returned by Get.
func SetForTesting(c *Config) {
	cfg = c
}

// NewTestConfig returns a quiet configuration for unit tests: no audio, no
// wake lock, debug logging.
func NewTestConfig() *Config {
	c := defaults(filepath.Join(os.TempDir(), "beepwatch-test"))
	c.Port = "8080"
	c.LogLevel = "debug"
	c.WakeLockEnabled = false
	c.AudioBackend = AudioNone
	return &c
}

func normalizeBasePath(basePath string) string {
	basePath = strings.Trim(basePath, "/")
	if basePath == "" {
		return "/"
	}
	return "/" + basePath
}

// FlagOverrides are command-line values applied over Load's result. Nil
// fields, empty strings and non-positive durations are ignored.
type FlagOverrides struct {
	Port            *string
	BasePath        *string
	LogLevel        *string
	Interval        *time.Duration
	TickGranularity *time.Duration
	WakeLockEnabled *bool
	AudioBackend    *string
	JournalEnabled  *bool
	RetentionDays   *int
	DataDir         *string
	DatabasePath    *string
}

func overrideString(dst *string, flag *string, transform func(string) string) {
	if flag != nil && *flag != "" {
		*dst = transform(*flag)
	}
}

func overrideDuration(dst *time.Duration, flag *time.Duration) {
	if flag != nil && *flag > 0 {
		*dst = *flag
	}
}

func overrideAny[T any](dst *T, flag *T) {
	if flag != nil {
		*dst = *flag
	}
}

func unchanged(s string) string { return s }

// ApplyFlags applies flag overrides to the loaded configuration.
func ApplyFlags(flags FlagOverrides) {
	if cfg == nil {
		return
	}

	overrideString(&cfg.Port, flags.Port, unchanged)
	overrideString(&cfg.BasePath, flags.BasePath, normalizeBasePath)
	overrideString(&cfg.LogLevel, flags.LogLevel, strings.ToLower)
	overrideString(&cfg.AudioBackend, flags.AudioBackend, strings.ToLower)
	overrideString(&cfg.DataDir, flags.DataDir, unchanged)
	overrideString(&cfg.DatabasePath, flags.DatabasePath, unchanged)
	overrideDuration(&cfg.Interval, flags.Interval)
	overrideDuration(&cfg.TickGranularity, flags.TickGranularity)
	overrideAny(&cfg.WakeLockEnabled, flags.WakeLockEnabled)
	overrideAny(&cfg.JournalEnabled, flags.JournalEnabled)
	overrideAny(&cfg.RetentionDays, flags.RetentionDays)

	cfg.normalize()
}
