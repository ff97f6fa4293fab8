package router

import (
	"github.com/gin-gonic/gin"

	prometheusHandler "github.com/clinicore/scheduling-api/internal/handler/prometheus"
	"github.com/clinicore/scheduling-api/internal/middleware"
	"github.com/clinicore/scheduling-api/pkg/logger"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	Mode           string
	RateLimitRPS   float64
	RateLimitBurst int
	Timeout        middleware.TimeoutConfig
	CORS           middleware.CORSConfig
}

type Router struct {
	engine *gin.Engine
}

// New assembles the engine with the full middleware chain and mounts
// every handler under /api/v1. Metrics are served at /metrics outside
// the API group so scrapes skip the rate limiter.
func New(cfg Config, log *logger.Logger, prom *prometheusHandler.Handler, handlers ...Handler) *Router {
	mode := cfg.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	if cfg.Timeout.Duration <= 0 {
		cfg.Timeout = middleware.DefaultTimeoutConfig()
	}

	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(log),
		prom.Middleware(),
		middleware.Timeout(cfg.Timeout),
		middleware.CORS(cfg.CORS),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.SizeLimit(middleware.DefaultSizeLimitConfig()),
	)

	engine.GET("/metrics", prom.Handler())

	api := engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	if cfg.RateLimitRPS > 0 {
		api.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).RateLimit())
	}

	for _, h := range handlers {
		h.RegisterRoutes(api)
	}

	return &Router{engine: engine}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
