package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pagefetch/models"
)

// Fetcher runs one crawl and always returns a solution.
type Fetcher interface {
	Fetch(ctx context.Context, req models.CrawlRequest) *models.Solution
}

// Fetch returns a handler for POST /v1 and POST /v2.
//
// Flow:
//  1. Decode and validate the payload. An empty body means "all defaults".
//  2. Apply defaults → CrawlRequest.
//  3. Fetcher.Fetch (queues behind any crawl in progress on this backend).
//  4. Wrap the solution in the envelope and respond 200.
//
// Crawl failures are reported inside the envelope (solution.status 500), not
// through the HTTP status.
func Fetch(f Fetcher, defaults models.FetchDefaults) gin.HandlerFunc {
	return func(c *gin.Context) {
		env := models.NewEnvelope()

		// ── 1. Parse request ────────────────────────────────────────
		var payload models.FetchPayload
		if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Status: "error",
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
				Version: models.Version,
			})
			return
		}

		// ── 2. Defaults ─────────────────────────────────────────────
		req := models.NewCrawlRequest(payload, defaults)

		// ── 3. Crawl ────────────────────────────────────────────────
		sol := f.Fetch(c.Request.Context(), req)

		// ── 4. Respond ──────────────────────────────────────────────
		c.JSON(http.StatusOK, env.Finish(sol))
	}
}

// Root returns a handler for GET and POST /. It answers with an empty
// envelope so callers can probe the service.
func Root() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.NewEnvelope())
	}
}
