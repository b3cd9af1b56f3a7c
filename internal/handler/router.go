package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/flenzi/company-service/api/spec"
	"github.com/flenzi/company-service/pkg/log"
	"github.com/flenzi/company-service/pkg/metrics"
	"github.com/flenzi/company-service/pkg/middleware"
	"github.com/flenzi/company-service/pkg/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// RouterConfig lists what the router serves. Metrics, RateLimiter and every
// handler are optional.
type RouterConfig struct {
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
	RateLimiter *middleware.RateLimiter
	Products    *ProductHandler
	Users       *UserHandler
	IDs         *IDHandler
	Health      map[string]Pinger
}

// NewRouter builds the gin engine with the middleware chain and the routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(log.GinMiddleware(cfg.Logger), middleware.Recovery())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	r.NoRoute(middleware.NoRoute())

	r.GET("/health", healthHandler(cfg.Health))
	r.GET("/openapi.yaml", openAPIHandler)

	api := r.Group("/api/v1")
	if cfg.RateLimiter != nil {
		api.Use(cfg.RateLimiter.Middleware())
	}
	if cfg.Products != nil {
		cfg.Products.RegisterRoutes(api)
	}
	if cfg.Users != nil {
		cfg.Users.RegisterRoutes(api)
	}
	if cfg.IDs != nil {
		cfg.IDs.RegisterRoutes(api)
	}

	return r
}

func openAPIHandler(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml; charset=utf-8", spec.OpenAPI)
}

func healthHandler(checks map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := "ok"
		results := make(map[string]string, len(checks))
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				results[name] = err.Error()
				status = "degraded"
				continue
			}
			results[name] = "ok"
		}

		body := gin.H{"status": status, "checks": results}
		if status != "ok" {
			c.JSON(http.StatusServiceUnavailable, response.Response{Success: false, Data: body})
			return
		}
		response.Success(c, body)
	}
}
