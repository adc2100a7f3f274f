package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SiteConfig describes the fixed observation site. Latitude and longitude
// are decimal-degree strings so the file round-trips exactly what the
// operator typed; parsing happens in the astro package.
type SiteConfig struct {
	// Name is a human-friendly label used in post text and logs.
	Name string `yaml:"name" json:"name"`

	Latitude  string `yaml:"latitude" json:"latitude"`
	Longitude string `yaml:"longitude" json:"longitude"`

	// Elevation above sea level in meters.
	Elevation float64 `yaml:"elevation" json:"elevation"`

	// Timezone is the IANA zone the site lives in (e.g. "America/Chicago").
	// All trigger times are wall-clock times in this zone.
	Timezone string `yaml:"timezone" json:"timezone"`
}

// ScheduleConfig controls the self-rescheduling timetable.
type ScheduleConfig struct {
	// Rebuild is a cron-style spec for the daily pre-dawn rebuild, in the
	// site timezone. The default fires before civil twilight year-round.
	Rebuild string `yaml:"rebuild" json:"rebuild"`

	// NightlyAt is the HH:MM local time of the nightly sky-animation post.
	NightlyAt string `yaml:"nightly_at" json:"nightly_at"`
}

// CaptureConfig describes the camera page screenshot.
type CaptureConfig struct {
	// URL of the page showing the camera view.
	URL string `yaml:"url" json:"url"`

	// WaitSelector, if set, is a CSS selector the page must render before
	// the screenshot is taken (e.g. "#stream-ready").
	WaitSelector string `yaml:"wait_selector" json:"wait_selector"`

	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`

	// TimeoutSec bounds one capture attempt.
	TimeoutSec int `yaml:"timeout_sec" json:"timeout_sec"`

	// OutputDir receives date-stamped capture files.
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

// PublishConfig holds Telegram publishing settings.
type PublishConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Token   string `yaml:"token" json:"token"`
	ChatID  int64  `yaml:"chat_id" json:"chat_id"`

	// RatePerMin caps outgoing messages per minute.
	RatePerMin int `yaml:"rate_per_min" json:"rate_per_min"`
}

// AnimationConfig describes one remote image listing turned into a nightly
// video post.
type AnimationConfig struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`

	Framerate int `yaml:"framerate" json:"framerate"`

	// HoldLastSec freezes the final frame for this many seconds.
	HoldLastSec int `yaml:"hold_last_sec" json:"hold_last_sec"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the status API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the status API.
	Listen string `yaml:"listen" json:"listen"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Site     SiteConfig     `yaml:"site" json:"site"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Capture  CaptureConfig  `yaml:"capture" json:"capture"`
	Publish  PublishConfig  `yaml:"publish" json:"publish"`

	Animations []AnimationConfig `yaml:"animations" json:"animations"`

	// HistoryPath is the SQLite file recording day summaries and posts.
	HistoryPath string `yaml:"history_path" json:"history_path"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration pointed at the
// original deployment site.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8080",
		LogLevel: "info",
		Site: SiteConfig{
			Name:      "Grand Forks",
			Latitude:  "47.925259",
			Longitude: "-97.032852",
			Elevation: 257,
			Timezone:  "America/Chicago",
		},
		Schedule: ScheduleConfig{
			Rebuild:   "15 3 * * *",
			NightlyAt: "23:00",
		},
		Capture: CaptureConfig{
			Width:      1920,
			Height:     1080,
			TimeoutSec: 30,
			OutputDir:  "./var/captures",
		},
		Publish: PublishConfig{
			RatePerMin: 20,
		},
		Animations: []AnimationConfig{{
			Name:        "aurora forecast",
			URL:         "https://services.swpc.noaa.gov/images/animations/ovation/north/",
			Framerate:   60,
			HoldLastSec: 3,
		}},
		HistoryPath: "./var/sunbot.db",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Site.Latitude == "" && c.Site.Longitude == "" {
		c.Site = def.Site
	}
	if c.Site.Timezone == "" {
		c.Site.Timezone = def.Site.Timezone
	}
	if c.Schedule.Rebuild == "" {
		c.Schedule.Rebuild = def.Schedule.Rebuild
	}
	if c.Schedule.NightlyAt == "" {
		c.Schedule.NightlyAt = def.Schedule.NightlyAt
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = def.Capture.Width
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = def.Capture.Height
	}
	if c.Capture.TimeoutSec <= 0 {
		c.Capture.TimeoutSec = def.Capture.TimeoutSec
	}
	if c.Capture.OutputDir == "" {
		c.Capture.OutputDir = def.Capture.OutputDir
	}
	if c.Publish.RatePerMin <= 0 {
		c.Publish.RatePerMin = def.Publish.RatePerMin
	}
	for i := range c.Animations {
		if c.Animations[i].Framerate <= 0 {
			c.Animations[i].Framerate = 30
		}
	}
	if c.HistoryPath == "" {
		c.HistoryPath = def.HistoryPath
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create the parent directory if needed,
//     write a default config with 0600 perms, and return the defaults.
//   - If the file exists: read YAML, unmarshal, normalize defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".sunbot-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
