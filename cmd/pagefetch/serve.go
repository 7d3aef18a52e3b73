package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/pagefetch/api"
	"github.com/use-agent/pagefetch/config"
	"github.com/use-agent/pagefetch/engine"
	"github.com/use-agent/pagefetch/scraper"
)

// shutdownGrace is how long in-flight requests get to finish on shutdown.
const shutdownGrace = 5 * time.Second

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the fetch API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "listen host")
	cmd.Flags().IntVar(&cfg.Server.Port, "port", cfg.Server.Port, "listen port")
	cmd.Flags().BoolVar(&cfg.Browser.EnableChromedp, "chromedp", cfg.Browser.EnableChromedp, "serve the chromedp backend on /v2")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("pagefetch starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"chromedp", cfg.Browser.EnableChromedp,
		"cookieJar", cfg.Session.CookieJar,
	)

	// ── 1. Backends (browsers start on first request) ───────────────
	backends := api.Backends{
		V1: newOrchestrator("rod", scraper.NewRodLauncher(cfg.Browser), cfg.Session),
	}
	if cfg.Browser.EnableChromedp {
		backends.V2 = newOrchestrator("chromedp", scraper.NewChromedpLauncher(cfg.Browser), cfg.Session)
	}
	defer closeBackends(backends)

	// ── 2. Router and server ────────────────────────────────────────
	router := api.NewRouter(backends, cfg.Fetch.Defaults(), cfg.Server.Mode, time.Now())
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// ── 3. Run until a signal arrives ───────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server forced shutdown", "error", err)
			return nil
		}
		slog.Info("HTTP server drained gracefully")
		return nil
	})

	err := g.Wait()
	slog.Info("pagefetch stopped")
	return err
}

// closeBackends waits for any crawl in progress, saves cookie jars and kills
// the browsers.
func closeBackends(b api.Backends) {
	for _, o := range []*engine.Orchestrator{b.V1, b.V2} {
		if o == nil {
			continue
		}
		if err := o.Sessions().Close(); err != nil {
			slog.Warn("failed to close browser session", "backend", o.Name(), "error", err)
		}
	}
}
