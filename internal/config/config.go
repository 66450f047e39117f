package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Policy names for event-to-item rendering. Exactly one is active.
const (
	PolicyPlain = "plain"
	PolicyRich  = "rich"
)

// SourceConfig describes a single ICS subscription source.
type SourceConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// Config is the top-level application configuration. Values come from an
// optional YAML file, then environment variables (optionally loaded from a
// .env file) override the subset that is deployment-specific.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used when formatting event times in
	// the rich rendering policy (e.g. "Europe/Berlin"). Empty means UTC.
	Timezone string `yaml:"timezone" json:"timezone"`

	// APIKey is the shared secret checked against the api_key query
	// parameter on every feed request.
	APIKey string `yaml:"api_key" json:"-"`

	// Sources is the list of subscribed ICS feeds.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// Channel metadata for the generated RSS document.
	ChannelTitle       string `yaml:"channel_title" json:"channel_title"`
	ChannelDescription string `yaml:"channel_description" json:"channel_description"`
	ChannelLink        string `yaml:"channel_link" json:"channel_link"`

	// Policy selects the item rendering policy: "plain" or "rich".
	Policy string `yaml:"policy" json:"policy"`

	// WindowFilter enables the look-ahead window filter. When false the
	// feed republishes every event the sources return.
	WindowFilter bool `yaml:"window_filter" json:"window_filter"`

	// LookAheadDays is the forward window size in days, inclusive at both
	// ends. Only consulted when WindowFilter is set.
	LookAheadDays int `yaml:"look_ahead_days" json:"look_ahead_days"`

	// ExpandRecurring expands RRULE events into concrete occurrences
	// inside the look-ahead window. Requires WindowFilter.
	ExpandRecurring bool `yaml:"expand_recurring" json:"expand_recurring"`

	// CacheTTL is the freshness window of the stored feed document, as a
	// Go duration string (e.g. "2h").
	CacheTTL string `yaml:"cache_ttl" json:"cache_ttl"`

	// DatabaseURL is the postgres connection string for the durable feed
	// cache. Empty selects the in-memory store.
	DatabaseURL string `yaml:"database_url" json:"-"`

	// RefreshCron is a cron-style schedule (e.g. "0 * * * *") used to
	// pre-warm the cache in the background. Empty disables it.
	RefreshCron string `yaml:"refresh" json:"refresh"`
}

const defaultCacheTTL = 2 * time.Hour

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:             "127.0.0.1:8080",
		Timezone:           "",
		Sources:            []SourceConfig{},
		ChannelTitle:       "Personal Calendar",
		ChannelDescription: "RSS Feed Generated From My Personal Calendar",
		ChannelLink:        "http://localhost:8080",
		Policy:             PolicyPlain,
		WindowFilter:       false,
		LookAheadDays:      3,
		ExpandRecurring:    false,
		CacheTTL:           "2h",
		RefreshCron:        "",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	switch c.Policy {
	case PolicyPlain, PolicyRich:
		// ok
	case "":
		c.Policy = PolicyPlain
	default:
		// Unknown value; fall back to the minimal rendering.
		c.Policy = PolicyPlain
	}
	if c.LookAheadDays <= 0 {
		c.LookAheadDays = 3
	}
	if c.ChannelTitle == "" {
		c.ChannelTitle = "Personal Calendar"
	}
	if c.ChannelDescription == "" {
		c.ChannelDescription = "RSS Feed Generated From My Personal Calendar"
	}
	if c.ChannelLink == "" {
		c.ChannelLink = "http://" + c.Listen
	}
	if c.CacheTTL == "" {
		c.CacheTTL = "2h"
	}
	// Expansion needs a bounded window to expand into.
	if !c.WindowFilter {
		c.ExpandRecurring = false
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
}

// TTL returns the parsed cache TTL, falling back to 2h on a malformed value.
func (c *Config) TTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d <= 0 {
		return defaultCacheTTL
	}
	return d
}

// Location resolves the configured timezone, defaulting to UTC.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate reports configuration problems that make the service unable to
// answer a single request.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("api_key (API_KEY) is not set")
	}
	for i, src := range c.Sources {
		if src.URL == "" {
			return fmt.Errorf("source %d has no url", i)
		}
	}
	return nil
}

// Load loads configuration from the given YAML path (optional), then applies
// environment overrides.
//
// Behavior:
//   - path == "": start from defaults, env only.
//   - file does not exist: write a default config with 0600 perms and
//     continue with it.
//   - file exists: unmarshal, normalize, then apply env.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			cfg = &Config{}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		case errors.Is(err, fs.ErrNotExist):
			// First run: create default config file.
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
		default:
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// applyEnv overrides deployment-specific values from the environment. A .env
// file in the working directory is honored when present.
func (c *Config) applyEnv() error {
	_ = godotenv.Load()

	if v := os.Getenv("API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("LOOK_AHEAD_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOOK_AHEAD_DAYS: %w", err)
		}
		c.LookAheadDays = n
		c.WindowFilter = true
	}
	if v := os.Getenv("ICAL_URLS"); v != "" {
		var urls []string
		if err := json.Unmarshal([]byte(v), &urls); err != nil {
			return fmt.Errorf("ICAL_URLS: %w", err)
		}
		sources := make([]SourceConfig, 0, len(urls))
		for _, u := range urls {
			sources = append(sources, SourceConfig{URL: u})
		}
		c.Sources = sources
	}
	return nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600 (the file holds the API key).
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

	tmp, err := os.CreateTemp(dir, ".calrss-config-*.tmp")
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
