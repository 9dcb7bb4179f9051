package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/pickup-gin/internal/config"
	"gorm.io/gorm"
)

// SetupRoutes 配置基础路由与中间件
// 业务路由组由 cmd/server.go 绑定控制器后挂载
func SetupRoutes(db *gorm.DB, cfg *config.Config) *gin.Engine {
	if config.IsProduction(cfg) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(ErrorHandlerMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(CORSMiddleware(cfg.CORS.AllowedOrigins))
	if cfg.Server.RateLimitRPS > 0 {
		router.Use(RateLimitMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))
	}

	// 健康检查
	healthController := NewHealthController(db)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", MetricsHandler)

	return router
}
