package routers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/MessageBoard/config"
	"github.com/Gopher0727/MessageBoard/internal/api"
	"github.com/Gopher0727/MessageBoard/internal/handlers"
)

// SetupRoutes 设置所有路由
func SetupRoutes(r *gin.Engine, cfg *config.Config,
	middleware *api.MiddlewareManager,
	messageHandler *handlers.MessageHandler,
	staticHandler *handlers.StaticHandler,
) error {
	// 未配置代理时 ClientIP 只取连接地址，限流按真实来源计数
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return fmt.Errorf("invalid server.trusted_proxies: %w", err)
	}

	r.Use(middleware.TraceID(), middleware.Logger(), middleware.Recovery())
	if cfg.Server.CORSEnabled {
		r.Use(middleware.CORS())
	}

	// 健康检查
	r.GET("/health", messageHandler.Health)

	RegisterMessageRoutes(r, middleware, messageHandler)

	// 其余路径交给静态目录
	r.NoRoute(staticHandler.Serve)
	return nil
}

// RegisterMessageRoutes 留言板接口
func RegisterMessageRoutes(r *gin.Engine, middleware *api.MiddlewareManager, messageHandler *handlers.MessageHandler) {
	listChain := []gin.HandlerFunc{messageHandler.GetMessages}
	createChain := []gin.HandlerFunc{messageHandler.CreateMessage}
	if middleware.RateLimitEnabled() {
		listChain = append([]gin.HandlerFunc{middleware.RateLimiterByEndpoint("list")}, listChain...)
		createChain = append([]gin.HandlerFunc{middleware.RateLimiterByEndpoint("create")}, createChain...)
	}

	r.GET("/message", listChain...)  // 最近 10 条
	r.PUT("/message", createChain...) // 新建留言
}
