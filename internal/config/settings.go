package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SettingsFileName is the preferences file kept in the data directory.
const SettingsFileName = "settings.yaml"

// Settings are the user preferences a shell may change at runtime. Unset
// fields leave the environment configuration untouched.
type Settings struct {
	IntervalMs   int64  `yaml:"interval_ms,omitempty"`
	AudioBackend string `yaml:"audio_backend,omitempty"`
	WakeLock     *bool  `yaml:"wake_lock,omitempty"`
}

// LoadSettings reads preferences from YAML.
// A missing file yields empty settings and no error.
func LoadSettings(path string) (Settings, error) {
	var settings Settings

	rawData, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("read settings file: %w", err)
	}

	if err := yaml.Unmarshal(rawData, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings yaml: %w", err)
	}
	return settings, nil
}

// SaveSettings writes preferences to YAML, creating the directory if needed.
func SaveSettings(path string, settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	serialized, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings yaml: %w", err)
	}

	if err := os.WriteFile(path, serialized, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}

func (c *Config) applySettings(settings Settings) {
	if settings.IntervalMs > 0 {
		c.Interval = time.Duration(settings.IntervalMs) * time.Millisecond
	}
	if settings.AudioBackend != "" {
		c.AudioBackend = settings.AudioBackend
	}
	if settings.WakeLock != nil {
		c.WakeLockEnabled = *settings.WakeLock
	}
}

// Settings returns the current preferences in file form.
func (c *Config) Settings() Settings {
	wakeLock := c.WakeLockEnabled
	return Settings{
		IntervalMs:   c.Interval.Milliseconds(),
		AudioBackend: c.AudioBackend,
		WakeLock:     &wakeLock,
	}
}

// SaveInterval validates d, stores it as the preferred interval and persists
// the preferences to SettingsPath.
func (c *Config) SaveInterval(d time.Duration) error {
	if err := ValidateInterval(d); err != nil {
		return err
	}
	c.Interval = d
	if c.SettingsPath == "" {
		return nil
	}
	return SaveSettings(c.SettingsPath, c.Settings())
}
