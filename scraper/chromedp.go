package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/use-agent/pagefetch/config"
	"github.com/use-agent/pagefetch/engine"
	"github.com/use-agent/pagefetch/models"
)

// ChromedpDriver drives the first tab of a chromedp-allocated browser.
// Every call runs against the tab context; request contexts carry the logger
// and, for element interactions, the step deadline.
type ChromedpDriver struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

var _ engine.Driver = (*ChromedpDriver)(nil)

// NewChromedpLauncher returns a Launcher that starts a local Chromium
// through chromedp.
func NewChromedpLauncher(cfg config.BrowserConfig) engine.Launcher {
	return func(ctx context.Context) (engine.Driver, error) {
		return launchChromedp(ctx, cfg)
	}
}

func launchChromedp(ctx context.Context, cfg config.BrowserConfig) (*ChromedpDriver, error) {
	w, h := windowDims(cfg)

	var opts []chromedp.ExecAllocatorOption
	for _, opt := range chromedp.DefaultExecAllocatorOptions {
		opts = append(opts, opt)
	}
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(w, h),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.BrowserBin != "" {
		opts = append(opts, chromedp.ExecPath(cfg.BrowserBin))
	}
	if cfg.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.Proxy))
	}

	// The browser outlives the request that started it.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, cancelTab := chromedp.NewContext(allocCtx)

	var product, protocol string
	err := chromedp.Run(tab, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		protocol, product, _, _, _, err = browser.GetVersion().Do(ctx)
		return err
	}))
	if err != nil {
		cancelTab()
		cancelAlloc()
		return nil, err
	}
	engine.LoggerFrom(ctx).Info("chrome version", "backend", "chromedp", "product", product, "protocol", protocol)

	return &ChromedpDriver{tab: tab, cancelTab: cancelTab, cancelAlloc: cancelAlloc}, nil
}

// Navigate loads url and waits up to navigationSettle for the load event. A
// page that never fires load is not an error: the load detector decides.
func (d *ChromedpDriver) Navigate(ctx context.Context, url string) error {
	return d.settle(ctx, "navigate", chromedp.Navigate(url))
}

// settle runs a navigation-like action bounded by navigationSettle. Running
// out of time only means the load event was not observed.
func (d *ChromedpDriver) settle(ctx context.Context, what string, action chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(d.tab, navigationSettle)
	defer cancel()
	err := chromedp.Run(runCtx, action)
	if errors.Is(err, context.DeadlineExceeded) {
		engine.LoggerFrom(ctx).Debug("load event not observed, continuing", "action", what, "error", err)
		return nil
	}
	return err
}

func (d *ChromedpDriver) Content(context.Context) (string, error) {
	var html string
	err := chromedp.Run(d.tab, chromedp.Evaluate(`document.documentElement.outerHTML`, &html))
	return html, err
}

func (d *ChromedpDriver) CurrentURL(context.Context) (string, error) {
	var loc string
	err := chromedp.Run(d.tab, chromedp.Location(&loc))
	return loc, err
}

func (d *ChromedpDriver) Cookies(context.Context) ([]models.Cookie, error) {
	var raw []*network.Cookie
	err := chromedp.Run(d.tab, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	out := make([]models.Cookie, 0, len(raw))
	for _, c := range raw {
		out = append(out, models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out, nil
}

// SetCookie stores c in the browser. A cookie without a domain is scoped to
// the current page.
func (d *ChromedpDriver) SetCookie(ctx context.Context, c models.Cookie) error {
	params := network.SetCookie(c.Name, c.Value).
		WithDomain(c.Domain).
		WithPath(c.Path).
		WithSecure(c.Secure).
		WithHTTPOnly(c.HTTPOnly)
	if c.SameSite != "" {
		params = params.WithSameSite(network.CookieSameSite(c.SameSite))
	}
	if c.Expires > 0 {
		exp := cdp.TimeSinceEpoch(time.Unix(0, int64(c.Expires*float64(time.Second))))
		params = params.WithExpires(&exp)
	}
	if c.Domain == "" {
		current, err := d.CurrentURL(ctx)
		if err != nil {
			return err
		}
		params = params.WithURL(current)
	}
	return chromedp.Run(d.tab, params)
}

func (d *ChromedpDriver) Refresh(ctx context.Context) error {
	return d.settle(ctx, "reload", chromedp.Reload())
}

// Find waits up to timeout for sel to match. Running out of time yields
// engine.ErrElementNotFound.
func (d *ChromedpDriver) Find(_ context.Context, sel models.Selector, timeout time.Duration) (engine.Element, error) {
	var (
		query string
		by    chromedp.QueryOption
	)
	switch sel.Kind {
	case models.SelectorCSS:
		query, by = sel.Value, chromedp.ByQuery
	case models.SelectorText:
		query, by = textXPath(sel.Value), chromedp.BySearch
	case models.SelectorXPath:
		query, by = sel.Value, chromedp.BySearch
	default:
		return nil, errUnsupportedSelector(sel)
	}

	findCtx, cancel := context.WithTimeout(d.tab, timeout)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(findCtx, chromedp.Nodes(query, &nodes, by)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, engine.ErrElementNotFound
		}
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, engine.ErrElementNotFound
	}
	return &chromedpElement{tab: d.tab, node: nodes[0]}, nil
}

func (d *ChromedpDriver) Screenshot(context.Context) ([]byte, error) {
	var buf []byte
	err := chromedp.Run(d.tab, chromedp.FullScreenshot(&buf, 100))
	return buf, err
}

func (d *ChromedpDriver) UserAgent(context.Context) (string, error) {
	var ua string
	err := chromedp.Run(d.tab, chromedp.Evaluate(`navigator.userAgent`, &ua))
	return ua, err
}

// Close shuts the browser down gracefully and releases the allocator.
func (d *ChromedpDriver) Close() error {
	err := chromedp.Cancel(d.tab)
	d.cancelTab()
	d.cancelAlloc()
	return err
}

// chromedpElement adapts a resolved DOM node to engine.Element.
type chromedpElement struct {
	tab  context.Context
	node *cdp.Node
}

func (e *chromedpElement) Click(ctx context.Context) error {
	runCtx, cancel := withDeadlineOf(e.tab, ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.MouseClickNode(e.node))
}

func (e *chromedpElement) SendKeys(ctx context.Context, text string) error {
	runCtx, cancel := withDeadlineOf(e.tab, ctx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.SendKeys([]cdp.NodeID{e.node.NodeID}, text, chromedp.ByNodeID))
}

// withDeadlineOf derives a context from tab that expires with ctx.
func withDeadlineOf(tab, ctx context.Context) (context.Context, context.CancelFunc) {
	if dl, ok := ctx.Deadline(); ok {
		return context.WithDeadline(tab, dl)
	}
	return context.WithCancel(tab)
}
