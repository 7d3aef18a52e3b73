package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pagefetch/models"
)

// SessionReporter exposes the state of one backend's browser session.
type SessionReporter interface {
	Stats() models.SessionStats
}

// Health returns a handler for GET /health.
//
// Reports every backend's session. The status degrades when a backend was
// restarted and has no live session, i.e. the relaunch failed.
func Health(backends []SessionReporter, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		stats := make([]models.SessionStats, 0, len(backends))
		for _, b := range backends {
			s := b.Stats()
			if s.Restarts > 0 && !s.Started {
				status = "degraded"
			}
			stats = append(stats, s)
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:   status,
			Uptime:   time.Since(startTime).Round(time.Second).String(),
			Backends: stats,
			Version:  models.Version,
		})
	}
}
