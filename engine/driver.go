package engine

import (
	"context"
	"errors"
	"time"

	"github.com/use-agent/pagefetch/models"
)

// ErrElementNotFound is returned by Driver.Find when no element matched the
// selector within the step timeout. It is the only error an action step may
// swallow; every other Find error is a driver fault.
var ErrElementNotFound = errors.New("element not found")

// Driver is the browser capability the engine drives. One Driver is one live
// browser session with a single active page.
type Driver interface {
	// Navigate loads url in the active page. It fails on network, DNS or
	// driver faults.
	Navigate(ctx context.Context, url string) error

	// Content returns the rendered document HTML.
	Content(ctx context.Context) (string, error)

	// CurrentURL returns the active page location after redirects.
	CurrentURL(ctx context.Context) (string, error)

	// Cookies returns every cookie in the session.
	Cookies(ctx context.Context) ([]models.Cookie, error)

	// SetCookie stores one cookie. A cookie without a domain is scoped to
	// the current page.
	SetCookie(ctx context.Context, c models.Cookie) error

	// Refresh reloads the active page.
	Refresh(ctx context.Context) error

	// Find resolves sel, waiting up to timeout. A timeout is reported as
	// ErrElementNotFound.
	Find(ctx context.Context, sel models.Selector, timeout time.Duration) (Element, error)

	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// UserAgent returns navigator.userAgent of the active page.
	UserAgent(ctx context.Context) (string, error)

	// Close tears down the browser.
	Close() error
}

// Element is a resolved DOM element.
type Element interface {
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
}

// Launcher starts a fresh browser session.
type Launcher func(ctx context.Context) (Driver, error)
