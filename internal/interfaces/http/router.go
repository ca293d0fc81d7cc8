// Package http assembles the clinlink HTTP API: routing, middleware and
// the server lifecycle.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/prometheus"
	"github.com/clinlink/clinlink/internal/interfaces/http/handlers"
	"github.com/clinlink/clinlink/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies for the
// complete route tree.
type RouterConfig struct {
	LinkageHandler *handlers.LinkageHandler
	HealthHandler  *handlers.HealthHandler

	Logger  logging.Logger
	Metrics *prometheus.PipelineMetrics

	// MetricsHandler serves the Prometheus scrape endpoint when set.
	MetricsHandler http.Handler

	// Mode is the gin mode: "debug", "release" or "test".
	Mode string

	SlowThreshold time.Duration
}

// NewRouter builds the route tree: public health probes, the metrics
// endpoint, and the versioned API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogging(logger, middleware.LoggingConfig{
		SkipPaths:     []string{"/healthz", "/readyz", "/metrics"},
		SlowThreshold: cfg.SlowThreshold,
	}))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	if cfg.LinkageHandler != nil {
		v1 := r.Group("/api/v1")
		{
			v1.POST("/records", cfg.LinkageHandler.IngestRecords)
			v1.POST("/annotations/runs", cfg.LinkageHandler.RunAnnotation)

			v1.POST("/groupings", cfg.LinkageHandler.BuildGrouping)
			v1.GET("/groupings", cfg.LinkageHandler.ListGroupings)
			v1.GET("/groupings/:key", cfg.LinkageHandler.GetGrouping)
			v1.GET("/groupings/:key/groups", cfg.LinkageHandler.GetGroups)
			v1.GET("/groupings/:key/supergroups", cfg.LinkageHandler.GetSupergroups)
			v1.GET("/groupings/:key/records/:id", cfg.LinkageHandler.RecordMembership)
		}
	}

	return r
}
