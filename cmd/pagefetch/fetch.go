package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/spf13/cobra"

	"github.com/use-agent/pagefetch/config"
	"github.com/use-agent/pagefetch/models"
)

type fetchOptions struct {
	backend    string
	url        string
	payload    string
	retries    int
	pageSize   int
	maxTimeout time.Duration
	screenshot string
}

func newFetchCmd(cfg *config.Config) *cobra.Command {
	var opts fetchOptions
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one crawl without the HTTP server and print the envelope",
		Example: `  pagefetch fetch --url https://example.com
  pagefetch fetch --payload '{"url":"https://example.com","actions":[{"trigger":"clickable","find":"Accept"}]}'
  pagefetch fetch --url https://example.com --screenshot page.png`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := opts.toPayload(cmd)
			if err != nil {
				return err
			}
			return runFetch(cmd.Context(), cfg, opts, payload, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.backend, "backend", "rod", "rod or chromedp")
	f.StringVar(&opts.url, "url", "", "page to render")
	f.StringVar(&opts.payload, "payload", "", "full request body as JSON; flags override its fields")
	f.IntVar(&opts.retries, "retry-count", 0, "additional attempts after the first")
	f.IntVar(&opts.pageSize, "page-size", 0, "content length a page must exceed to count as loaded")
	f.DurationVar(&opts.maxTimeout, "max-timeout", 0, "load polling window per attempt")
	f.StringVar(&opts.screenshot, "screenshot", "", "write a PNG of the final page to this file")
	return cmd
}

// toPayload merges --payload with the individual flags that were set.
func (o fetchOptions) toPayload(cmd *cobra.Command) (models.FetchPayload, error) {
	var p models.FetchPayload
	if o.payload != "" {
		if err := json.Unmarshal([]byte(o.payload), &p); err != nil {
			return p, fmt.Errorf("invalid --payload: %w", err)
		}
	}
	flags := cmd.Flags()
	if flags.Changed("url") {
		p.URL = o.url
	}
	if flags.Changed("retry-count") {
		p.RetryCount = &o.retries
	}
	if flags.Changed("page-size") {
		p.PageSize = &o.pageSize
	}
	if flags.Changed("max-timeout") {
		ms := int(o.maxTimeout / time.Millisecond)
		p.MaxTimeout = &ms
	}
	if o.screenshot != "" {
		p.Screenshot = true
	}
	// Same rules the HTTP handler enforces through ShouldBindJSON.
	if err := binding.Validator.ValidateStruct(&p); err != nil {
		return p, fmt.Errorf("invalid request: %w", err)
	}
	return p, nil
}

func runFetch(ctx context.Context, cfg *config.Config, opts fetchOptions, payload models.FetchPayload, out io.Writer) error {
	launch, err := launcherFor(opts.backend, cfg.Browser)
	if err != nil {
		return err
	}
	o := newOrchestrator(opts.backend, launch, cfg.Session)
	defer func() { _ = o.Sessions().Close() }()

	env := models.NewEnvelope()
	sol := o.Fetch(ctx, models.NewCrawlRequest(payload, cfg.Fetch.Defaults()))
	env.Finish(sol)

	if opts.screenshot != "" && sol.ScreenshotBase64 != "" {
		png, err := base64.StdEncoding.DecodeString(sol.ScreenshotBase64)
		if err != nil {
			return fmt.Errorf("decode screenshot: %w", err)
		}
		if err := os.WriteFile(opts.screenshot, png, 0o644); err != nil {
			return fmt.Errorf("write screenshot: %w", err)
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return err
	}
	if sol.Failed() {
		return errors.New("fetch failed: " + sol.Response)
	}
	return nil
}
