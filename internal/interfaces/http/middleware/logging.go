// Package middleware provides the HTTP middleware for the clinlink API.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
)

// requestIDHeader carries the request correlation ID in and out.
const requestIDHeader = "X-Request-ID"

// LoggingConfig tunes the request-logging middleware.
type LoggingConfig struct {
	// SkipPaths lists paths logged at no level, typically health probes.
	SkipPaths []string

	// SlowThreshold raises the log level to Warn for slower requests.
	// Zero disables the slow-request check.
	SlowThreshold time.Duration
}

// RequestID assigns a correlation ID to every request, honoring one the
// client already sent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogging logs one line per request: method, path, status, duration
// and the correlation ID.  5xx responses log at Error, 4xx and slow
// requests at Warn, everything else at Info.
func RequestLogging(logger logging.Logger, cfg LoggingConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		if _, ok := skip[path]; ok {
			return
		}

		elapsed := time.Since(start)
		status := c.Writer.Status()
		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", path),
			logging.Int("status", status),
			logging.Duration("duration", elapsed),
			logging.String("request_id", c.GetString("request_id")),
		}

		switch {
		case status >= 500:
			logger.Error("request failed", fields...)
		case status >= 400:
			logger.Warn("request rejected", fields...)
		case cfg.SlowThreshold > 0 && elapsed > cfg.SlowThreshold:
			logger.Warn("slow request", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}
