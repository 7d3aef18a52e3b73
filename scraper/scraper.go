package scraper

import (
	"context"
	"strconv"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/use-agent/pagefetch/config"
	"github.com/use-agent/pagefetch/engine"
)

// NewRodLauncher returns a Launcher that starts a local Chromium through
// rod and opens the single tab a session drives.
func NewRodLauncher(cfg config.BrowserConfig) engine.Launcher {
	return func(ctx context.Context) (engine.Driver, error) {
		return launchRod(ctx, cfg)
	}
}

func launchRod(ctx context.Context, cfg config.BrowserConfig) (*RodDriver, error) {
	log := engine.LoggerFrom(ctx)

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Chrome flags ─────────────────────────────────────────────────
	l.Set(flags.Flag("window-size"), windowSize(cfg))
	l.Set(flags.Flag("ignore-certificate-errors"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}
	log.Debug("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, err
	}

	if v, err := browser.Version(); err == nil {
		log.Info("chrome version", "backend", "rod", "product", v.Product, "protocol", v.ProtocolVersion)
	}

	var page *rod.Page
	if cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, err
	}

	if len(cfg.ExtraHeaders) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(cfg.ExtraHeaders)}).Call(page); err != nil {
			log.Warn("failed to set extra headers", "error", err)
		}
	}

	return &RodDriver{
		launcher: l,
		browser:  browser,
		page:     page,
		router:   setupHijack(page, cfg.BlockedResourceTypes),
	}, nil
}

// windowDims returns the configured window size, falling back to 1920x1080.
func windowDims(cfg config.BrowserConfig) (int, int) {
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		return 1920, 1080
	}
	return cfg.WindowWidth, cfg.WindowHeight
}

func windowSize(cfg config.BrowserConfig) string {
	w, h := windowDims(cfg)
	return strconv.Itoa(w) + "," + strconv.Itoa(h)
}

// Close stops the request router, closes the browser and kills the process.
// Call this on shutdown to prevent zombie Chrome processes.
func (d *RodDriver) Close() error {
	if d.router != nil {
		_ = d.router.Stop()
	}
	err := d.browser.Close()
	d.launcher.Kill()
	d.launcher.Cleanup()
	return err
}
