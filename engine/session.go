package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/pagefetch/models"
)

// SessionConfig controls one backend's browser session.
type SessionConfig struct {
	// Backend names the session in logs and health output.
	Backend string

	// CookieJar is the file cookies are restored from on start and saved to
	// after each successful fetch. Empty disables persistence.
	CookieJar string

	// RestartOnFault relaunches the browser after a navigation, load or
	// action fault. Without it faults only count against the session's
	// health score.
	RestartOnFault bool

	// MaxUses retires the session after this many fetches. 0 disables.
	MaxUses int

	// MaxAge retires the session once it is this old. 0 disables.
	MaxAge time.Duration
}

// SessionManager owns the single long-lived browser session of a backend.
// The session is started lazily and shared by all requests; crawlMu
// serializes whole fetches against it.
type SessionManager struct {
	cfg    SessionConfig
	launch Launcher

	crawlMu sync.Mutex
	busy    atomic.Bool

	mu       sync.Mutex // guards the fields below
	driver   Driver
	created  time.Time
	uses     int
	restarts int
	errScore float64
}

// NewSessionManager returns a manager that starts sessions with launch.
func NewSessionManager(cfg SessionConfig, launch Launcher) *SessionManager {
	return &SessionManager{cfg: cfg, launch: launch}
}

// Backend returns the configured backend name.
func (m *SessionManager) Backend() string {
	return m.cfg.Backend
}

// CookieJar returns the file this backend's cookies persist to.
func (m *SessionManager) CookieJar() string {
	return m.cfg.CookieJar
}

// lock takes the exclusive crawl lock. There is no timeout: callers queue
// behind the fetch in progress.
func (m *SessionManager) lock() {
	m.crawlMu.Lock()
	m.busy.Store(true)
}

func (m *SessionManager) unlock() {
	m.busy.Store(false)
	m.crawlMu.Unlock()
}

// Acquire returns the live session, starting it on first use and retiring
// it first when it has exceeded MaxUses or MaxAge.
func (m *SessionManager) Acquire(ctx context.Context) (Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.driver != nil && m.shouldRetire() {
		LoggerFrom(ctx).Info("retiring browser session",
			"backend", m.cfg.Backend, "uses", m.uses, "age", time.Since(m.created).Round(time.Second))
		m.persistLocked(ctx)
		m.closeLocked(ctx)
		m.restarts++
	}
	if m.driver == nil {
		if err := m.startLocked(ctx); err != nil {
			return nil, err
		}
	}
	m.uses++
	return m.driver, nil
}

// Restart tears the current session down and starts a new one. If the new
// session fails to start, the next Acquire tries again.
func (m *SessionManager) Restart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeLocked(ctx)
	m.restarts++
	return m.startLocked(ctx)
}

// Persist saves the session cookies to the cookie jar.
func (m *SessionManager) Persist(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistLocked(ctx)
}

// Close saves the cookie jar and shuts the browser down. It waits for any
// fetch in progress.
func (m *SessionManager) Close() error {
	m.lock()
	defer m.unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := context.Background()
	m.persistLocked(ctx)
	if m.driver == nil {
		return nil
	}
	err := m.driver.Close()
	m.driver = nil
	return err
}

// Stats returns a snapshot of the session state.
func (m *SessionManager) Stats() models.SessionStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := models.SessionStats{
		Backend:  m.cfg.Backend,
		Started:  m.driver != nil,
		Busy:     m.busy.Load(),
		Uses:     m.uses,
		Restarts: m.restarts,
		ErrScore: m.errScore,
	}
	if m.driver != nil {
		stats.Age = time.Since(m.created).Round(time.Second).String()
	}
	return stats
}

// shouldRetire reports whether the current session has reached its use, age
// or fault budget.
func (m *SessionManager) shouldRetire() bool {
	if m.cfg.MaxUses > 0 && m.uses >= m.cfg.MaxUses {
		return true
	}
	if m.cfg.MaxAge > 0 && time.Since(m.created) >= m.cfg.MaxAge {
		return true
	}
	return m.unhealthy()
}

func (m *SessionManager) startLocked(ctx context.Context) error {
	log := LoggerFrom(ctx).With("backend", m.cfg.Backend)

	drv, err := m.launch(ctx)
	if err != nil {
		return models.NewFetchError(models.ErrCodeBrowserCrash,
			fmt.Sprintf("failed to start %s browser session", m.cfg.Backend), err)
	}
	m.driver = drv
	m.created = time.Now()
	m.uses = 0
	m.errScore = 0
	log.Info("browser session started")

	if m.cfg.CookieJar != "" {
		n, err := loadCookieJar(ctx, drv, m.cfg.CookieJar)
		if err != nil {
			log.Warn("failed to restore cookie jar", "path", m.cfg.CookieJar, "error", err)
		} else {
			log.Debug("cookie jar restored", "path", m.cfg.CookieJar, "cookies", n)
		}
	}
	return nil
}

func (m *SessionManager) closeLocked(ctx context.Context) {
	if m.driver == nil {
		return
	}
	if err := m.driver.Close(); err != nil {
		LoggerFrom(ctx).Warn("failed to close browser session", "backend", m.cfg.Backend, "error", err)
	}
	m.driver = nil
}

func (m *SessionManager) persistLocked(ctx context.Context) {
	if m.cfg.CookieJar == "" || m.driver == nil {
		return
	}
	if err := saveCookieJar(ctx, m.driver, m.cfg.CookieJar); err != nil {
		LoggerFrom(ctx).Warn("failed to save cookie jar", "path", m.cfg.CookieJar, "error", err)
	}
}
