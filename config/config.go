package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Target    TargetConfig
	Relay     RelayConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Store     StoreConfig
	Browser   BrowserConfig
	Harvest   HarvestConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// TargetConfig holds the Wisconsin DNR BOTW URL layout. Every path is
// parameterized by a detail sequence number (dsn) except SearchPath.
type TargetConfig struct {
	// BaseURL is the scheme+host of the target system.
	BaseURL string // default: "https://apps.dnr.wi.gov"

	// DetailPath is the site detail page, the primary fetch of a relay.
	DetailPath string // default: "/rrbotw/botw-activity-detail"

	// SiteFilesPath, AddtlDocsPath and ActionsPath are the three AJAX
	// widgets fetched with the harvested session cookie.
	SiteFilesPath string // default: "/rrbotw/botw-activity-detail/WizSiteFiles"
	AddtlDocsPath string // default: "/rrbotw/botw-activity-detail/WizAddtionalURLsDocs"
	ActionsPath   string // default: "/rrbotw/botw-activity-detail/WizActions"

	// SearchPath is the county search form used by the list scraper.
	SearchPath string // default: "/rrbotw/botw-search"
}

// RelayConfig controls the session-relay fetcher.
type RelayConfig struct {
	// Timeout is the deadline for one whole relay invocation
	// (primary fetch + cookie harvest + fan-out).
	Timeout time.Duration // default: 30s

	// MaxBodyBytes caps how much of any upstream response body is read.
	MaxBodyBytes int64 // default: 10 MB

	// Proxy is an optional outbound proxy URL.
	Proxy string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication. The relay fronts a single
	// public government site, so auth defaults to off.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-identity rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per identity.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per identity.
	Burst int // default: 5
}

// CacheConfig controls the relay result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached relay results.
	// Zero disables the cache entirely.
	MaxEntries int // default: 1000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// StoreConfig controls the SQLite site/document store.
type StoreConfig struct {
	Path string // default: "database/wisconsin_brrts.db"
}

// BrowserConfig controls the Rod browser used by the county list scraper.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is an optional proxy URL for browser traffic.
	Proxy string

	// NavTimeout is the deadline for a single page navigation.
	NavTimeout time.Duration // default: 60s

	// MaxSites stops the list scrape after this many collected rows.
	MaxSites int // default: 500
}

// HarvestConfig controls the batch document harvester.
type HarvestConfig struct {
	// RequestsPerSecond throttles relay invocations against the
	// upstream site. The DNR tolerates roughly one request per 1.5s.
	RequestsPerSecond float64 // default: 0.66

	// MaxRetries is the caller-side retry count for transport failures.
	// The relay itself never retries.
	MaxRetries int // default: 3

	// RetryDelay is the base backoff, multiplied by the attempt number.
	RetryDelay time.Duration // default: 5s

	// ProgressInterval logs progress every N sites.
	ProgressInterval int // default: 100
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("BRRTS_HOST", "0.0.0.0"),
			Port: envIntOr("BRRTS_PORT", 8080),
			Mode: envOr("BRRTS_MODE", "release"),
		},
		Target: TargetConfig{
			BaseURL:       envOr("BRRTS_BASE_URL", "https://apps.dnr.wi.gov"),
			DetailPath:    envOr("BRRTS_DETAIL_PATH", "/rrbotw/botw-activity-detail"),
			SiteFilesPath: envOr("BRRTS_SITE_FILES_PATH", "/rrbotw/botw-activity-detail/WizSiteFiles"),
			AddtlDocsPath: envOr("BRRTS_ADDTL_DOCS_PATH", "/rrbotw/botw-activity-detail/WizAddtionalURLsDocs"),
			ActionsPath:   envOr("BRRTS_ACTIONS_PATH", "/rrbotw/botw-activity-detail/WizActions"),
			SearchPath:    envOr("BRRTS_SEARCH_PATH", "/rrbotw/botw-search"),
		},
		Relay: RelayConfig{
			Timeout:      envDurationOr("BRRTS_RELAY_TIMEOUT", 30*time.Second),
			MaxBodyBytes: int64(envIntOr("BRRTS_MAX_BODY_BYTES", 10<<20)),
			Proxy:        os.Getenv("BRRTS_PROXY"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("BRRTS_AUTH_ENABLED", false),
			APIKeys: envSliceOr("BRRTS_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("BRRTS_RATE_RPS", 2.0),
			Burst:             envIntOr("BRRTS_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("BRRTS_CACHE_MAX_ENTRIES", 1000),
		},
		Log: LogConfig{
			Level:  envOr("BRRTS_LOG_LEVEL", "info"),
			Format: envOr("BRRTS_LOG_FORMAT", "json"),
		},
		Store: StoreConfig{
			Path: envOr("BRRTS_DB_PATH", "database/wisconsin_brrts.db"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("BRRTS_HEADLESS", true),
			NoSandbox:  envBoolOr("BRRTS_NO_SANDBOX", false),
			BrowserBin: os.Getenv("BRRTS_BROWSER_BIN"),
			Proxy:      os.Getenv("BRRTS_BROWSER_PROXY"),
			NavTimeout: envDurationOr("BRRTS_NAV_TIMEOUT", 60*time.Second),
			MaxSites:   envIntOr("BRRTS_MAX_SITES", 500),
		},
		Harvest: HarvestConfig{
			RequestsPerSecond: envFloatOr("BRRTS_HARVEST_RPS", 0.66),
			MaxRetries:        envIntOr("BRRTS_HARVEST_RETRIES", 3),
			RetryDelay:        envDurationOr("BRRTS_HARVEST_RETRY_DELAY", 5*time.Second),
			ProgressInterval:  envIntOr("BRRTS_HARVEST_PROGRESS", 100),
		},
	}
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

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
