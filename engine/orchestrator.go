package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/pagefetch/models"
)

// maxRetriesDiagnostic is the response of a request whose attempts all ended
// blank or timed out.
const maxRetriesDiagnostic = "maximum retries exceeded, giving up"

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSleeper replaces the load detector's sleeper.
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) { o.detector = NewDetector(s) }
}

// Orchestrator runs crawls against one backend's session.
type Orchestrator struct {
	sessions *SessionManager
	detector *Detector
	executor *Executor
}

// NewOrchestrator returns an Orchestrator that fetches through sessions.
func NewOrchestrator(sessions *SessionManager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions: sessions,
		detector: NewDetector(nil),
		executor: NewExecutor(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name returns the backend name.
func (o *Orchestrator) Name() string {
	return o.sessions.Backend()
}

// Sessions returns the session manager the orchestrator drives.
func (o *Orchestrator) Sessions() *SessionManager {
	return o.sessions
}

// Fetch renders req.URL and returns exactly one solution. It never returns
// an error: every failure becomes a status-500 solution with a diagnostic.
//
// The backend's crawl lock is held for the whole call. Cancellation of ctx
// is ignored once Fetch starts; values such as the request logger are kept.
//
// Lifecycle per attempt (at most req.RetryCount+1 attempts):
//
//  1. Navigate               – failure ends the request, no retry
//  2. Apply cookies          – normalized against the landed host, then refresh
//  3. Await load             – blank shell or timeout moves to the next attempt
//  4. Run actions            – a fault ends the request, no retry
//  5. Capture                – content, cookies, user agent, screenshot
func (o *Orchestrator) Fetch(ctx context.Context, req models.CrawlRequest) (sol *models.Solution) {
	ctx = context.WithoutCancel(ctx)
	log := LoggerFrom(ctx).With("backend", o.Name(), "url", req.URL)
	ctx = WithLogger(ctx, log)

	o.sessions.lock()
	defer o.sessions.unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during fetch", "panic", r)
			o.handleFault(ctx, fmt.Errorf("panic: %v", r))
			sol = failure(req.URL, models.NewFetchError(models.ErrCodeInternal, "internal error during fetch", fmt.Errorf("%v", r)))
		}
		log.Info("fetch finished", "status", sol.Status, "elapsed", time.Since(start).Round(time.Millisecond))
	}()

	return o.fetchLocked(ctx, log, req)
}

func (o *Orchestrator) fetchLocked(ctx context.Context, log *slog.Logger, req models.CrawlRequest) *models.Solution {
	log.Debug("fetch started",
		"retryCount", req.RetryCount, "pageSize", req.PageSizeThreshold,
		"maxTimeout", req.MaxTimeout, "actions", len(req.Actions))

	drv, err := o.sessions.Acquire(ctx)
	if err != nil {
		return failure(req.URL, err)
	}

	for attempt := 0; attempt <= req.RetryCount; attempt++ {
		if attempt > 0 {
			log.Info("retrying", "attempt", attempt, "of", req.RetryCount)
		}

		// ── 1. Navigate ─────────────────────────────────────────────
		if err := drv.Navigate(ctx, req.URL); err != nil {
			log.Warn("navigation failed", "attempt", attempt, "error", err)
			o.handleFault(ctx, err)
			return models.FailedSolution(req.URL, fmt.Sprintf("get url error: %s\n%v\n", req.URL, err))
		}

		// ── 2. Cookies ──────────────────────────────────────────────
		if err := applyCookies(ctx, drv, req.Cookies); err != nil {
			o.handleFault(ctx, err)
			return failure(req.URL, models.NewFetchError(models.ErrCodeNavigation, "failed to apply cookies", err))
		}

		// ── 3. Await load ───────────────────────────────────────────
		outcome, err := o.detector.AwaitLoad(ctx, drv, req.PageSizeThreshold, req.MaxTimeout)
		switch outcome {
		case LoadFault:
			o.handleFault(ctx, err)
			return failure(req.URL, models.NewFetchError(models.ErrCodeBrowserCrash, "failed to read page content", err))
		case LoadBlank:
			log.Info("blank page detected", "attempt", attempt)
			continue
		case LoadTimedOut:
			log.Info("page did not load in time", "attempt", attempt, "maxTimeout", req.MaxTimeout)
			continue
		}

		// ── 4. Actions ──────────────────────────────────────────────
		report, err := o.executor.Run(ctx, drv, req.Actions)
		if err != nil {
			o.handleFault(ctx, err)
			return failure(req.URL, err)
		}
		if len(report.Skipped) > 0 {
			log.Debug("actions finished with skipped steps", "done", report.Done, "skipped", report.Skipped)
		}

		// ── 5. Capture ──────────────────────────────────────────────
		sol, err := o.capture(ctx, drv, req)
		if err != nil {
			o.handleFault(ctx, err)
			return failure(req.URL, models.NewFetchError(models.ErrCodeBrowserCrash, "failed to capture page", err))
		}
		o.sessions.RecordSuccess()
		o.sessions.Persist(ctx)
		return sol
	}

	log.Warn(maxRetriesDiagnostic, "attempts", req.RetryCount+1)
	return models.FailedSolution(req.URL, maxRetriesDiagnostic)
}

// capture collects the final page state. Only the content read is fatal;
// cookies, user agent and screenshot are best-effort.
func (o *Orchestrator) capture(ctx context.Context, drv Driver, req models.CrawlRequest) (*models.Solution, error) {
	log := LoggerFrom(ctx)

	content, err := drv.Content(ctx)
	if err != nil {
		return nil, err
	}

	cookies, err := drv.Cookies(ctx)
	if err != nil {
		log.Warn("failed to read cookies", "error", err)
	}
	if cookies == nil {
		cookies = []models.Cookie{}
	}

	userAgent, err := drv.UserAgent(ctx)
	if err != nil {
		log.Warn("failed to read user agent", "error", err)
	}

	var screenshot string
	if req.CaptureScreenshot {
		png, err := drv.Screenshot(ctx)
		if err != nil {
			log.Warn("failed to capture screenshot", "error", err)
		} else {
			screenshot = base64.StdEncoding.EncodeToString(png)
		}
	}

	return &models.Solution{
		URL:              req.URL,
		Status:           models.StatusOK,
		Headers:          map[string]string{},
		Response:         content,
		Cookies:          cookies,
		UserAgent:        userAgent,
		ScreenshotBase64: screenshot,
	}, nil
}

// handleFault restarts the session when the backend is configured to and
// otherwise counts the fault against the session's health.
func (o *Orchestrator) handleFault(ctx context.Context, cause error) {
	if !o.sessions.cfg.RestartOnFault {
		o.sessions.RecordFault()
		return
	}
	log := LoggerFrom(ctx)
	log.Info("restarting browser session after fault", "cause", cause)
	if err := o.sessions.Restart(ctx); err != nil {
		log.Error("browser session restart failed", "error", err)
	}
}

// failure converts err into a status-500 solution.
func failure(url string, err error) *models.Solution {
	var fe *models.FetchError
	if errors.As(err, &fe) {
		return models.FailedSolution(url, fe.Diagnostic())
	}
	return models.FailedSolution(url, err.Error())
}
