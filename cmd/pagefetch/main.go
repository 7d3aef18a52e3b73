package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/use-agent/pagefetch/config"
	"github.com/use-agent/pagefetch/engine"
	"github.com/use-agent/pagefetch/models"
	"github.com/use-agent/pagefetch/scraper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	root := &cobra.Command{
		Use:           "pagefetch",
		Short:         "Render web pages in a shared headless browser and return their final state.",
		Version:       models.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			initLogger(cfg.Log)
		},
	}
	root.PersistentFlags().StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "debug, info, warn or error")
	root.PersistentFlags().StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "json or text")
	root.PersistentFlags().BoolVar(&cfg.Browser.Headless, "headless", cfg.Browser.Headless, "run the browser headless")
	root.PersistentFlags().StringVar(&cfg.Session.CookieJar, "cookie-jar", cfg.Session.CookieJar, "file cookies persist to; empty disables")

	root.AddCommand(newServeCmd(cfg), newFetchCmd(cfg))
	return root
}

// newOrchestrator wires one backend's session manager to its launcher.
func newOrchestrator(backend string, launch engine.Launcher, cfg config.SessionConfig) *engine.Orchestrator {
	sessions := engine.NewSessionManager(engine.SessionConfig{
		Backend:        backend,
		CookieJar:      cfg.JarFor(backend),
		RestartOnFault: cfg.RestartOnFault,
		MaxUses:        cfg.MaxUses,
		MaxAge:         cfg.MaxAge,
	}, launch)
	return engine.NewOrchestrator(sessions)
}

// launcherFor returns the launcher of the named backend.
func launcherFor(backend string, cfg config.BrowserConfig) (engine.Launcher, error) {
	switch backend {
	case "rod":
		return scraper.NewRodLauncher(cfg), nil
	case "chromedp":
		return scraper.NewChromedpLauncher(cfg), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want rod or chromedp)", backend)
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
