// Package http assembles the gin router of the read-only query API.
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linkrx/formident/internal/application/resolution"
	"github.com/linkrx/formident/internal/config"
	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
	"github.com/linkrx/formident/internal/interfaces/http/handlers"
)

// NewRouter builds the query-API router over a frozen registry.  gatherer
// serves /metrics; pass the registry the run's collectors were registered
// on.
func NewRouter(
	cfg config.ServerConfig,
	svc *resolution.Service,
	gatherer prometheus.Gatherer,
	log logging.Logger,
) *gin.Engine {
	gin.SetMode(cfg.Mode)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log.Named("http")))

	h := handlers.NewRegistryHandler(svc, log)
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/classes", h.ListClasses)
		v1.GET("/classes/:id", h.GetClass)
		v1.GET("/resolve", h.Resolve)
		v1.POST("/match", h.Match)
	}
	return r
}

func requestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request handled",
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(start)))
	}
}
