package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pagefetch/api/handler"
	"github.com/use-agent/pagefetch/api/middleware"
	"github.com/use-agent/pagefetch/engine"
	"github.com/use-agent/pagefetch/models"
)

// Backends are the orchestrators served by the router. V2 is optional.
type Backends struct {
	V1 *engine.Orchestrator
	V2 *engine.Orchestrator
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → Logger
//
// Routes:
//
//	GET|POST /        empty envelope
//	POST     /v1      rod backend
//	POST     /v2      chromedp backend (when configured)
//	GET      /health  per-backend session state
func NewRouter(b Backends, defaults models.FetchDefaults, mode string, startTime time.Time) *gin.Engine {
	gin.SetMode(mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())

	r.GET("/", handler.Root())
	r.POST("/", handler.Root())

	var reporters []handler.SessionReporter
	if b.V1 != nil {
		r.POST("/v1", handler.Fetch(b.V1, defaults))
		reporters = append(reporters, b.V1.Sessions())
	}
	if b.V2 != nil {
		r.POST("/v2", handler.Fetch(b.V2, defaults))
		reporters = append(reporters, b.V2.Sessions())
	}

	r.GET("/health", handler.Health(reporters, startTime))

	return r
}
