// Package api exposes the retrieval service over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kovalyov-valentin/news-retriever/internal/model"
	"github.com/kovalyov-valentin/news-retriever/internal/retrieval"
)

const adminTokenHeader = "X-Admin-Token"

// Service is what the HTTP layer needs from the orchestrator.
type Service interface {
	Retrieve(ctx context.Context, category string, limit int) retrieval.Result
	RefreshCategory(ctx context.Context, category string) []model.Article
	Stats(ctx context.Context) model.Stats
	ClearCache(ctx context.Context) error
}

type Options struct {
	// AdminToken protects /v1/admin routes when not empty.
	AdminToken string
	Logger     *slog.Logger
}

// NewServer builds the echo instance with every route registered.
func NewServer(svc Service, opts Options) *echo.Echo {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/healthz"
		},
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ctx := c.Request().Context()
			if v.Error == nil {
				logger.InfoContext(ctx, "request completed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds())
			} else {
				logger.ErrorContext(ctx, "request failed",
					"method", v.Method,
					"uri", v.URI,
					"status", v.Status,
					"latency_ms", v.Latency.Milliseconds(),
					"error", v.Error.Error())
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	h := &handler{svc: svc, logger: logger}

	e.GET("/healthz", h.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	v1.GET("/news/:category", h.news)

	admin := v1.Group("/admin")
	if opts.AdminToken != "" {
		admin.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:" + adminTokenHeader,
			Validator: func(key string, _ echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), []byte(opts.AdminToken)) == 1, nil
			},
		}))
	}
	admin.GET("/stats", h.stats)
	admin.POST("/cache/clear", h.clearCache)
	admin.POST("/refresh/:category", h.refresh)

	return e
}
