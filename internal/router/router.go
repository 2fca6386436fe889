package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	authhandler "github.com/timelogic/wfm-api/internal/handler/auth"
	notifhandler "github.com/timelogic/wfm-api/internal/handler/notification"
	"github.com/timelogic/wfm-api/internal/middleware"
	"github.com/timelogic/wfm-api/internal/validation"
	"github.com/timelogic/wfm-api/pkg/metrics"
)

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	authH   *authhandler.Handler
	notifH  *notifhandler.Handler
	metrics *metrics.Metrics
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	authH *authhandler.Handler,
	notifH *notifhandler.Handler,
	m *metrics.Metrics,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	validation.RegisterBindingValidators()

	engine := gin.New()

	r := &Router{
		engine:  engine,
		auth:    auth,
		authH:   authH,
		notifH:  notifH,
		metrics: m,
	}

	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
	)
	engine.Use(middleware.CORS(config.CORSConfig))

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")

	r.authH.RegisterRoutes(api.Group("/auth"))

	protected := api.Group("/notifications")
	protected.Use(r.auth.Authenticate())
	r.notifH.RegisterRoutes(protected, r.auth)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// metricsMiddleware records count and latency per route. The route template
// is used instead of the raw path so label cardinality stays bounded.
func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		r.metrics.HTTPRequests.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		r.metrics.HTTPDuration.WithLabelValues(
			c.Request.Method,
			path,
		).Observe(time.Since(start).Seconds())
	}
}
