package prometheus

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clinicore/scheduling-api/pkg/metrics"
)

type Handler struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func New(registry *prometheus.Registry, m *metrics.Metrics) *Handler {
	return &Handler{
		registry: registry,
		metrics:  m,
	}
}

// Middleware records request counts and latencies per route template,
// so /appointments/:id stays one series regardless of the concrete ID.
func (h *Handler) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		h.metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		h.metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (h *Handler) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
}
