package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/use-agent/pagefetch/models"
)

// saveCookieJar writes every cookie of drv to path as JSON. The file is
// replaced atomically.
func saveCookieJar(ctx context.Context, drv Driver, path string) error {
	cookies, err := drv.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("cookiejar: read cookies: %w", err)
	}
	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("cookiejar: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cookiejar: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("cookiejar: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cookiejar: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cookiejar: write: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("cookiejar: rename: %w", err)
	}
	return nil
}

// loadCookieJar restores cookies saved by saveCookieJar. A missing file is not
// an error. It returns the number of cookies restored.
func loadCookieJar(ctx context.Context, drv Driver, path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cookiejar: read: %w", err)
	}

	var cookies []models.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return 0, fmt.Errorf("cookiejar: decode %s: %w", path, err)
	}

	restored := 0
	for _, c := range cookies {
		if c.Domain == "" {
			continue
		}
		if err := drv.SetCookie(ctx, c); err != nil {
			LoggerFrom(ctx).Debug("cookiejar: skipping cookie", "cookie", c.Name, "error", err)
			continue
		}
		restored++
	}
	return restored, nil
}
