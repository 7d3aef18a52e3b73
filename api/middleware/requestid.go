package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/use-agent/pagefetch/engine"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with an id. A caller-supplied X-Request-ID is
// kept; otherwise a UUID is generated. The id is echoed in the response and
// attached to the logger the engine reads from the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(RequestIDHeader, id)

		log := slog.Default().With("request_id", id)
		c.Request = c.Request.WithContext(engine.WithLogger(c.Request.Context(), log))
		c.Next()
	}
}
