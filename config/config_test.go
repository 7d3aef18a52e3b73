package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8191, cfg.Server.Port)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1920, cfg.Browser.WindowWidth)
	assert.True(t, cfg.Session.RestartOnFault)
	assert.Equal(t, 3, cfg.Fetch.RetryCount)
	assert.Equal(t, 100, cfg.Fetch.PageSize)
	assert.Equal(t, 60*time.Second, cfg.Fetch.MaxTimeout)
	assert.Equal(t, "https://www.google.com/", cfg.Fetch.Defaults().URL)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PAGEFETCH_PORT", "9000")
	t.Setenv("PAGEFETCH_HEADLESS", "false")
	t.Setenv("PAGEFETCH_BLOCKED_RESOURCES", "Image, Font ,")
	t.Setenv("PAGEFETCH_EXTRA_HEADERS", "Accept-Language=en-US, X-Bad ,X-Trace = 1")
	t.Setenv("PAGEFETCH_COOKIE_JAR", "/tmp/jar.json")
	t.Setenv("PAGEFETCH_SESSION_MAX_AGE", "30m")
	t.Setenv("PAGEFETCH_RETRY_COUNT", "not-a-number")

	cfg := Load()

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, []string{"Image", "Font"}, cfg.Browser.BlockedResourceTypes)
	assert.Equal(t, map[string]string{"Accept-Language": "en-US", "X-Trace": "1"}, cfg.Browser.ExtraHeaders)
	assert.Equal(t, "/tmp/jar.json", cfg.Session.CookieJar)
	assert.Equal(t, 30*time.Minute, cfg.Session.MaxAge)
	assert.Equal(t, 3, cfg.Fetch.RetryCount, "invalid values fall back")
}

func TestSessionConfig_JarFor(t *testing.T) {
	tests := []struct {
		jar, backend, want string
	}{
		{"/app/cookies.dat", "rod", "/app/cookies.rod.dat"},
		{"/app/cookies.dat", "chromedp", "/app/cookies.chromedp.dat"},
		{"jar", "rod", "jar.rod"},
		{"", "rod", ""},
		{"/tmp/jar.json", "", "/tmp/jar.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SessionConfig{CookieJar: tt.jar}.JarFor(tt.backend), "%s/%s", tt.jar, tt.backend)
	}
}
