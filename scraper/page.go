package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/use-agent/pagefetch/engine"
	"github.com/use-agent/pagefetch/models"
)

// RodDriver drives one tab of a rod-controlled browser. It is not safe for
// concurrent use; the session manager serializes access.
type RodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
}

var _ engine.Driver = (*RodDriver)(nil)

// Navigate loads url and waits for the load event. A page that never fires
// load is not an error: the load detector decides.
func (d *RodDriver) Navigate(ctx context.Context, url string) error {
	p := d.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return err
	}
	if err := p.Timeout(navigationSettle).WaitLoad(); err != nil {
		engine.LoggerFrom(ctx).Debug("load event not observed, continuing", "error", err)
	}
	return nil
}

// navigationSettle bounds the wait for the load event after navigation.
const navigationSettle = 15 * time.Second

func (d *RodDriver) Content(ctx context.Context) (string, error) {
	return d.page.Context(ctx).HTML()
}

func (d *RodDriver) CurrentURL(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (d *RodDriver) Cookies(ctx context.Context) ([]models.Cookie, error) {
	raw, err := d.page.Context(ctx).Cookies(nil)
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
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out, nil
}

// SetCookie stores c in the browser. A cookie without a domain is scoped to
// the current page.
func (d *RodDriver) SetCookie(ctx context.Context, c models.Cookie) error {
	p := d.page.Context(ctx)
	req := proto.NetworkSetCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
		SameSite: proto.NetworkCookieSameSite(c.SameSite),
	}
	if c.Expires > 0 {
		req.Expires = proto.TimeSinceEpoch(c.Expires)
	}
	if c.Domain == "" {
		info, err := p.Info()
		if err != nil {
			return err
		}
		req.URL = info.URL
	}
	_, err := req.Call(p)
	return err
}

func (d *RodDriver) Refresh(ctx context.Context) error {
	p := d.page.Context(ctx)
	if err := p.Reload(); err != nil {
		return err
	}
	if err := p.Timeout(navigationSettle).WaitLoad(); err != nil {
		engine.LoggerFrom(ctx).Debug("load event not observed after reload", "error", err)
	}
	return nil
}

// Find waits up to timeout for sel to match. Running out of time yields
// engine.ErrElementNotFound.
func (d *RodDriver) Find(ctx context.Context, sel models.Selector, timeout time.Duration) (engine.Element, error) {
	findCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := d.page.Context(findCtx)
	var (
		el  *rod.Element
		err error
	)
	switch sel.Kind {
	case models.SelectorCSS:
		el, err = p.Element(sel.Value)
	case models.SelectorText:
		el, err = p.ElementX(textXPath(sel.Value))
	case models.SelectorXPath:
		el, err = p.ElementX(sel.Value)
	default:
		return nil, errUnsupportedSelector(sel)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, engine.ErrElementNotFound
		}
		return nil, err
	}
	return &rodElement{el: el.Context(ctx)}, nil
}

func (d *RodDriver) Screenshot(ctx context.Context) ([]byte, error) {
	return d.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (d *RodDriver) UserAgent(ctx context.Context) (string, error) {
	res, err := d.page.Context(ctx).Eval(`() => navigator.userAgent`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
