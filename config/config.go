package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/pagefetch/models"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Browser BrowserConfig
	Session SessionConfig
	Fetch   FetchConfig
	Log     LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8191
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how browser sessions are launched. Both backends
// read the same settings.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy server every session goes through.
	Proxy string

	// Stealth injects the anti-detection script into new rod pages.
	Stealth bool // default: true

	// WindowWidth and WindowHeight size the browser window.
	WindowWidth  int // default: 1920
	WindowHeight int // default: 1080

	// BlockedResourceTypes lists resource types the rod backend refuses to
	// load, e.g. ["Image", "Font"]. default: none
	BlockedResourceTypes []string

	// ExtraHeaders are sent with every request of the rod backend.
	ExtraHeaders map[string]string

	// EnableChromedp starts the /v2 backend.
	EnableChromedp bool // default: true
}

// SessionConfig controls the lifetime of the shared browser sessions.
type SessionConfig struct {
	// CookieJar is the file cookies persist to across restarts.
	// Empty disables persistence.
	CookieJar string // default: "/app/cookies.dat" on linux, "cookies.dat" elsewhere

	// RestartOnFault relaunches the browser after a navigation, load or
	// action fault.
	RestartOnFault bool // default: true

	// MaxUses retires a session after this many fetches. 0 disables.
	MaxUses int // default: 0

	// MaxAge retires a session once it is this old. 0 disables.
	MaxAge time.Duration // default: 0
}

// FetchConfig holds the defaults applied to fields a caller leaves out.
type FetchConfig struct {
	DefaultURL    string        // default: "https://www.google.com/"
	RetryCount    int           // default: 3
	PageSize      int           // default: 100
	MaxTimeout    time.Duration // default: 60s
	ActionTimeout time.Duration // default: 10s
}

// Defaults converts the config to the form the request layer consumes.
func (c FetchConfig) Defaults() models.FetchDefaults {
	return models.FetchDefaults{
		URL:           c.DefaultURL,
		RetryCount:    c.RetryCount,
		PageSize:      c.PageSize,
		MaxTimeout:    c.MaxTimeout,
		ActionTimeout: c.ActionTimeout,
	}
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	d := models.DefaultFetchDefaults()
	return &Config{
		Server: ServerConfig{
			Host: envOr("PAGEFETCH_HOST", "0.0.0.0"),
			Port: envIntOr("PAGEFETCH_PORT", 8191),
			Mode: envOr("PAGEFETCH_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:             envBoolOr("PAGEFETCH_HEADLESS", true),
			NoSandbox:            envBoolOr("PAGEFETCH_NO_SANDBOX", true),
			BrowserBin:           os.Getenv("PAGEFETCH_BROWSER_BIN"),
			Proxy:                os.Getenv("PAGEFETCH_PROXY"),
			Stealth:              envBoolOr("PAGEFETCH_STEALTH", true),
			WindowWidth:          envIntOr("PAGEFETCH_WINDOW_WIDTH", 1920),
			WindowHeight:         envIntOr("PAGEFETCH_WINDOW_HEIGHT", 1080),
			BlockedResourceTypes: envSliceOr("PAGEFETCH_BLOCKED_RESOURCES", nil),
			ExtraHeaders:         envMapOr("PAGEFETCH_EXTRA_HEADERS", nil),
			EnableChromedp:       envBoolOr("PAGEFETCH_ENABLE_CHROMEDP", true),
		},
		Session: SessionConfig{
			CookieJar:      envOr("PAGEFETCH_COOKIE_JAR", defaultCookieJar()),
			RestartOnFault: envBoolOr("PAGEFETCH_RESTART_ON_FAULT", true),
			MaxUses:        envIntOr("PAGEFETCH_SESSION_MAX_USES", 0),
			MaxAge:         envDurationOr("PAGEFETCH_SESSION_MAX_AGE", 0),
		},
		Fetch: FetchConfig{
			DefaultURL:    envOr("PAGEFETCH_DEFAULT_URL", d.URL),
			RetryCount:    envIntOr("PAGEFETCH_RETRY_COUNT", d.RetryCount),
			PageSize:      envIntOr("PAGEFETCH_PAGE_SIZE", d.PageSize),
			MaxTimeout:    envDurationOr("PAGEFETCH_MAX_TIMEOUT", d.MaxTimeout),
			ActionTimeout: envDurationOr("PAGEFETCH_ACTION_TIMEOUT", d.ActionTimeout),
		},
		Log: LogConfig{
			Level:  envOr("PAGEFETCH_LOG_LEVEL", "info"),
			Format: envOr("PAGEFETCH_LOG_FORMAT", "json"),
		},
	}
}

// JarFor returns the cookie jar file of one backend: the backend name is
// inserted before the extension of CookieJar. Backends save independently,
// so they never share a file.
func (c SessionConfig) JarFor(backend string) string {
	if c.CookieJar == "" || backend == "" {
		return c.CookieJar
	}
	ext := filepath.Ext(c.CookieJar)
	return strings.TrimSuffix(c.CookieJar, ext) + "." + backend + ext
}

func defaultCookieJar() string {
	if runtime.GOOS == "linux" {
		return "/app/cookies.dat"
	}
	return "cookies.dat"
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

// envMapOr parses "Key=Value,Key2=Value2". Malformed pairs are ignored.
func envMapOr(key string, fallback map[string]string) map[string]string {
	pairs := envSliceOr(key, nil)
	if len(pairs) == 0 {
		return fallback
	}
	result := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if k = strings.TrimSpace(k); !ok || k == "" {
			continue
		}
		result[k] = strings.TrimSpace(v)
	}
	return result
}
