package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Source kinds.
const (
	SourceJSON = "json"
	SourceICS  = "ics"
)

// SourceConfig describes where the event collection comes from.
type SourceConfig struct {
	// Kind is "json" (array of event records) or "ics" (iCalendar feed).
	Kind string `yaml:"kind" json:"kind"`
	// URL is fetched over HTTP when set; otherwise Path is read.
	URL  string `yaml:"url" json:"url"`
	Path string `yaml:"path" json:"path"`
	// CacheDir keeps the last good HTTP body for offline fallback.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// TimeoutSeconds bounds one fetch.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	// HorizonDays limits recurrence expansion of ICS feeds.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
}

// MapConfig holds the initial map view and fit behaviour.
type MapConfig struct {
	CenterLat float64 `yaml:"center_lat" json:"center_lat"`
	CenterLng float64 `yaml:"center_lng" json:"center_lng"`
	Zoom      int     `yaml:"zoom" json:"zoom"`
	// FitPadding grows the marker bounds by this ratio on every side.
	FitPadding float64 `yaml:"fit_padding" json:"fit_padding"`
	// TileURL is the tile layer template handed to the map widget.
	TileURL string `yaml:"tile_url" json:"tile_url"`
}

// CalendarConfig controls the exported calendar files.
type CalendarConfig struct {
	ProdID    string `yaml:"prodid" json:"prodid"`
	UIDDomain string `yaml:"uid_domain" json:"uid_domain"`
}

// MailConfig fills the vendor application template.
type MailConfig struct {
	Business  string `yaml:"business" json:"business"`
	Products  string `yaml:"products" json:"products"`
	Signature string `yaml:"signature" json:"signature"`
}

// RouteConfig points at the directions service.
type RouteConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// CaptureConfig sizes the headless-browser snapshot.
type CaptureConfig struct {
	Width          int `yaml:"width" json:"width"`
	Height         int `yaml:"height" json:"height"`
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	// OutputPath, if set, keeps a copy of every snapshot on disk.
	OutputPath string `yaml:"output_path" json:"output_path"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for date text without an offset and
	// for display.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// NullStart places events without a start "first" or "last" in the
	// list.
	NullStart string `yaml:"null_start" json:"null_start"`

	// RefreshCron reloads the collection on a cron schedule
	// (e.g. "0 */6 * * *"). Empty loads once at startup only.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Source   SourceConfig   `yaml:"source" json:"source"`
	Map      MapConfig      `yaml:"map" json:"map"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Mail     MailConfig     `yaml:"mail" json:"mail"`
	Route    RouteConfig    `yaml:"route" json:"route"`
	Capture  CaptureConfig  `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch c.NullStart {
	case "first", "last":
	default:
		c.NullStart = "first"
	}

	switch c.Source.Kind {
	case SourceJSON, SourceICS:
	default:
		c.Source.Kind = SourceJSON
	}
	if c.Source.URL == "" && c.Source.Path == "" {
		c.Source.Path = "events.json"
	}
	if c.Source.CacheDir == "" {
		c.Source.CacheDir = "./cache/source"
	}
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = 15
	}
	if c.Source.HorizonDays <= 0 {
		c.Source.HorizonDays = 180
	}

	// Roughly between North Florida and Georgia.
	if c.Map.CenterLat == 0 && c.Map.CenterLng == 0 {
		c.Map.CenterLat = 30.5
		c.Map.CenterLng = -82.0
	}
	if c.Map.Zoom <= 0 {
		c.Map.Zoom = 6
	}
	if c.Map.FitPadding <= 0 {
		c.Map.FitPadding = 0.3
	}
	if c.Map.TileURL == "" {
		c.Map.TileURL = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	}

	if c.Calendar.ProdID == "" {
		c.Calendar.ProdID = "-//Vendor Planner//Market Logistics Planner//EN"
	}
	if c.Calendar.UIDDomain == "" {
		c.Calendar.UIDDomain = "vendorplan"
	}
	if c.Route.BaseURL == "" {
		c.Route.BaseURL = "https://www.google.com/maps/dir/"
	}

	if c.Capture.Width <= 0 {
		c.Capture.Width = 1280
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 1600
	}
	if c.Capture.TimeoutSeconds <= 0 {
		c.Capture.TimeoutSeconds = 30
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
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

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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

	tmp, err := os.CreateTemp(dir, ".vendorplan-config-*.tmp")
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
