package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/frostdev-ops/pma-alerting-go/internal/api/handlers"
	"github.com/frostdev-ops/pma-alerting-go/internal/api/middleware"
	"github.com/frostdev-ops/pma-alerting-go/internal/config"
	"github.com/frostdev-ops/pma-alerting-go/internal/core/alerting"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, manager *alerting.Manager, logger *logrus.Logger) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handlers.NewAlertingHandler(manager, logger)
	h.RegisterRoutes(router.Group("/api/v1"))

	return router
}
