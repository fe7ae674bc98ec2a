package handlers

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"nicepg/internal/config"
	"nicepg/internal/metrics"
	"nicepg/internal/middleware"
)

// NewRouter builds the admin API. m may be nil, in which case /metrics is
// not served. /metrics needs the API key like the migration routes.
func NewRouter(cfg config.ServerConfig, h *Handler, m *metrics.Collector, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.RequestLogger(logger, m))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "X-API-Key", middleware.RequestIDHeader)
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsConfig))

	r.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))

	auth := middleware.NewAuthMiddleware(cfg.APIKey, gin.Mode() == gin.ReleaseMode)

	if m != nil {
		r.GET("/metrics", auth.Authenticate(), gin.WrapH(m.Handler()))
	}

	api := r.Group("/api")
	api.Use(auth.Authenticate())
	{
		api.GET("/health", h.Health)

		migrations := api.Group("/migrations")
		migrations.GET("/status", h.GetStatus)
		migrations.POST("/up", h.MigrateUp)
		migrations.POST("/down", h.MigrateDown)
	}

	return r
}
