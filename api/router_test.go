package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pagefetch/api/middleware"
	"github.com/use-agent/pagefetch/engine"
	"github.com/use-agent/pagefetch/models"
)

// staticDriver serves the same document for every navigation.
type staticDriver struct {
	html string
	url  string
}

func (d *staticDriver) Navigate(_ context.Context, url string) error {
	d.url = url
	return nil
}
func (d *staticDriver) Content(context.Context) (string, error)       { return d.html, nil }
func (d *staticDriver) CurrentURL(context.Context) (string, error)    { return d.url, nil }
func (d *staticDriver) Cookies(context.Context) ([]models.Cookie, error) { return nil, nil }
func (d *staticDriver) SetCookie(context.Context, models.Cookie) error { return nil }
func (d *staticDriver) Refresh(context.Context) error                  { return nil }
func (d *staticDriver) Find(context.Context, models.Selector, time.Duration) (engine.Element, error) {
	return nil, engine.ErrElementNotFound
}
func (d *staticDriver) Screenshot(context.Context) ([]byte, error) { return []byte{0x89, 'P', 'N', 'G'}, nil }
func (d *staticDriver) UserAgent(context.Context) (string, error)  { return "StaticBrowser", nil }
func (d *staticDriver) Close() error                               { return nil }

func newOrchestrator(backend, html string) *engine.Orchestrator {
	launch := func(context.Context) (engine.Driver, error) {
		return &staticDriver{html: html}, nil
	}
	sessions := engine.NewSessionManager(engine.SessionConfig{Backend: backend}, launch)
	return engine.NewOrchestrator(sessions, engine.WithSleeper(func(context.Context, time.Duration) {}))
}

func TestRouter_Routes(t *testing.T) {
	r := NewRouter(Backends{
		V1: newOrchestrator("rod", "<html><body>"+strings.Repeat("v1", 100)+"</body></html>"),
		V2: newOrchestrator("chromedp", "<html><body>"+strings.Repeat("v2", 100)+"</body></html>"),
	}, models.DefaultFetchDefaults(), "test", time.Now())

	for _, path := range []string{"/v1", "/v2"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"url":"http://example.test","screenshot":true}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

		var env models.Envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		require.Equal(t, models.StatusOK, env.Solution.Status, path)
		assert.Contains(t, env.Solution.Response, strings.TrimPrefix(path, "/"))
		assert.Equal(t, "StaticBrowser", env.Solution.UserAgent)
		assert.Equal(t, "iVBORw==", env.Solution.ScreenshotBase64)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var health models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	require.Len(t, health.Backends, 2)
	assert.True(t, health.Backends[0].Started)
	assert.Equal(t, 1, health.Backends[1].Uses)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_WithoutV2(t *testing.T) {
	r := NewRouter(Backends{V1: newOrchestrator("rod", "x")}, models.DefaultFetchDefaults(), "test", time.Now())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v2", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestID_KeepsCallerID(t *testing.T) {
	r := NewRouter(Backends{}, models.DefaultFetchDefaults(), "test", time.Now())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(middleware.RequestIDHeader))
}
