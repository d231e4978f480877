package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Browser BrowserConfig
	Crawl   CrawlConfig
	Dates   DatesConfig
	Webhook WebhookConfig
	Log     LogConfig

	// Sites holds per-site overrides keyed by site id, loaded from the
	// optional YAML file.
	Sites map[string]SiteOverride
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// Proxy is the proxy URL passed to the launcher.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// AcceptLanguage is sent as an extra header on every request.
	AcceptLanguage string // default: "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"

	// NavigationTimeout is the max time for page navigation alone.
	NavigationTimeout time.Duration // default: 30s
}

// CrawlConfig controls the extraction loop.
type CrawlConfig struct {
	// CheckpointEvery is the buffer size multiple that triggers a flush.
	CheckpointEvery int // default: 50

	// MaxReviews caps the records collected per site; 0 means unlimited.
	MaxReviews int // default: 0
}

// DatesConfig controls date normalization.
type DatesConfig struct {
	// AnchorDate pins "today" (YYYY-MM-DD); empty means the system clock.
	AnchorDate string

	// YearRollover enables decrementing the year on a backward month jump.
	YearRollover bool // default: false

	// Normalize toggles normalization for sites that support it.
	Normalize bool // default: true
}

// WebhookConfig controls checkpoint notifications.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// SiteOverride replaces parts of a built-in site definition. Zero values
// leave the built-in setting untouched.
type SiteOverride struct {
	URL             string            `yaml:"url"`
	Selectors       map[string]string `yaml:"selectors"`
	SettleDelay     time.Duration     `yaml:"settle_delay"`
	LoadDelay       time.Duration     `yaml:"load_delay"`
	MaxIdleAdvances int               `yaml:"max_idle_advances"`
}

type fileConfig struct {
	Sites map[string]SiteOverride `yaml:"sites"`
}

// Load reads configuration from a .env file (if present), environment
// variables with sane defaults and, when path or REVIEWCRAWL_CONFIG is set,
// a YAML file with per-site overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg := &Config{
		Browser: BrowserConfig{
			Headless:   envBoolOr("REVIEWCRAWL_HEADLESS", true),
			Proxy:      os.Getenv("REVIEWCRAWL_PROXY"),
			NoSandbox:  envBoolOr("REVIEWCRAWL_NO_SANDBOX", false),
			BrowserBin: os.Getenv("REVIEWCRAWL_BROWSER_BIN"),
			BlockedResourceTypes: envSliceOr("REVIEWCRAWL_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			AcceptLanguage:    envOr("REVIEWCRAWL_ACCEPT_LANGUAGE", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"),
			NavigationTimeout: envDurationOr("REVIEWCRAWL_NAV_TIMEOUT", 30*time.Second),
		},
		Crawl: CrawlConfig{
			CheckpointEvery: envIntOr("REVIEWCRAWL_CHECKPOINT_EVERY", 50),
			MaxReviews:      envIntOr("REVIEWCRAWL_MAX_REVIEWS", 0),
		},
		Dates: DatesConfig{
			AnchorDate:   os.Getenv("REVIEWCRAWL_ANCHOR_DATE"),
			YearRollover: envBoolOr("REVIEWCRAWL_YEAR_ROLLOVER", false),
			Normalize:    envBoolOr("REVIEWCRAWL_NORMALIZE_DATES", true),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("REVIEWCRAWL_WEBHOOK_URL"),
			Secret: os.Getenv("REVIEWCRAWL_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("REVIEWCRAWL_LOG_LEVEL", "info"),
			Format: envOr("REVIEWCRAWL_LOG_FORMAT", "text"),
		},
	}

	if cfg.Crawl.CheckpointEvery <= 0 {
		return nil, fmt.Errorf("config: REVIEWCRAWL_CHECKPOINT_EVERY must be positive, got %d", cfg.Crawl.CheckpointEvery)
	}
	if cfg.Crawl.MaxReviews < 0 {
		return nil, fmt.Errorf("config: REVIEWCRAWL_MAX_REVIEWS must not be negative, got %d", cfg.Crawl.MaxReviews)
	}

	if path == "" {
		path = os.Getenv("REVIEWCRAWL_CONFIG")
	}
	if path != "" {
		sites, err := loadSites(path)
		if err != nil {
			return nil, err
		}
		cfg.Sites = sites
	}
	return cfg, nil
}

func loadSites(path string) (map[string]SiteOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	for id, o := range fc.Sites {
		if o.SettleDelay < 0 || o.LoadDelay < 0 || o.MaxIdleAdvances < 0 {
			return nil, fmt.Errorf("config: site %q: delays and max_idle_advances must not be negative", id)
		}
	}
	return fc.Sites, nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
