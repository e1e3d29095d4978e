package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all routes, middleware and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = h.JSONErrors()
	e.Use(SetNoCacheHeaders)

	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.RateLimit),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		})))
	}

	// Prometheus scrape endpoint
	e.GET("/metrics", echo.WrapHandler(h.metricsHandler()))

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)
	v1.GET("/status", h.Status)
	v1.GET("/settlements/recent", h.RecentSettlements)
	v1.GET("/quote", h.Quote)

	flagGroup := v1.Group("/flags")
	flagGroup.GET("", h.FlagsList)
	flagGroup.GET("/:key", h.FlagsGet)

	// writes are guarded when an API key is configured
	writes := flagGroup.Group("")
	if cfg.APIKey != "" {
		writes.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}
	writes.PUT("/:key", h.FlagsUpdate)
	writes.DELETE("/:key", h.FlagsDelete)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}

func (h *Handlers) metricsHandler() http.Handler {
	if h.Gatherer != nil {
		return promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

func requestLogger(logger *logrus.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency,
			}).Debug("http request")
			return nil
		},
	})
}
