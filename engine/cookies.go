package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/use-agent/pagefetch/models"
)

// Canonical SameSite values accepted by browsers.
const (
	SameSiteStrict = "Strict"
	SameSiteLax    = "Lax"
	SameSiteNone   = "None"
)

// NormalizeCookies filters cookies against currentDomain and rewrites their
// SameSite attribute to a canonical value.
//
//   - A cookie whose domain is set and is neither currentDomain nor a
//     subdomain of it is dropped.
//   - SameSite "strict"/"no_restriction" become Strict, "lax" becomes Lax,
//     "none"/"unspecified" become None (case-insensitive). Any other
//     non-empty value drops the cookie.
//   - A cookie without SameSite passes through unchanged.
//
// The input slice is not modified. Normalizing an already normalized set
// returns an equal set.
func NormalizeCookies(cookies []models.Cookie, currentDomain string) []models.Cookie {
	out := make([]models.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Domain != "" && !isSubdomain(c.Domain, currentDomain) {
			slog.Debug("skipping cookie for foreign domain",
				"cookie", c.Name, "domain", c.Domain, "current", currentDomain)
			continue
		}
		if c.SameSite != "" {
			sameSite, ok := normalizeSameSite(c.SameSite)
			if !ok {
				slog.Info("skipping cookie with unsupported SameSite value",
					"cookie", c.Name, "sameSite", c.SameSite)
				continue
			}
			c.SameSite = sameSite
		}
		out = append(out, c)
	}
	return out
}

// isSubdomain reports whether subdomain equals domain or ends with "."+domain.
func isSubdomain(subdomain, domain string) bool {
	return subdomain == domain || strings.HasSuffix(subdomain, "."+domain)
}

func normalizeSameSite(v string) (string, bool) {
	switch v {
	case SameSiteStrict, SameSiteLax, SameSiteNone:
		return v, true
	}
	switch strings.ToLower(v) {
	case "strict", "no_restriction":
		return SameSiteStrict, true
	case "lax":
		return SameSiteLax, true
	case "none", "unspecified":
		return SameSiteNone, true
	}
	return "", false
}

// hostOf returns the host part of rawURL without the port.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// applyCookies normalizes cookies against the page drv is on, stores the
// survivors and reloads the page so they take effect. Cookies the browser
// refuses are logged and skipped.
func applyCookies(ctx context.Context, drv Driver, cookies []models.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	log := LoggerFrom(ctx)

	current, err := drv.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("read current url: %w", err)
	}

	applied := 0
	for _, c := range NormalizeCookies(cookies, hostOf(current)) {
		if err := drv.SetCookie(ctx, c); err != nil {
			log.Warn("browser rejected cookie", "cookie", c.Name, "error", err)
			continue
		}
		applied++
	}
	if applied == 0 {
		return nil
	}

	log.Debug("cookies applied, refreshing page", "count", applied)
	if err := drv.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh after setting cookies: %w", err)
	}
	return nil
}
