package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/MessageBoard/config"
	"github.com/Gopher0727/MessageBoard/internal/handlers"
	logger "github.com/Gopher0727/MessageBoard/middleware/log"
	"github.com/Gopher0727/MessageBoard/utils/ratelimit"
)

// RateLimitedResponse 429 响应体
type RateLimitedResponse struct {
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
	Remaining  int    `json:"remaining"`
}

type MiddlewareManager struct {
	rateLimiter  *ratelimit.FixedWindowLimiter
	logger       *logger.Logger
	rateLimitCfg *config.RateLimitConfig
}

// NewMiddlewareManager rateLimiter 可以为 nil（未启用 Redis 时不限流）
func NewMiddlewareManager(
	rateLimiter *ratelimit.FixedWindowLimiter,
	log *logger.Logger,
	rateLimitCfg *config.RateLimitConfig,
) *MiddlewareManager {
	return &MiddlewareManager{
		rateLimiter:  rateLimiter,
		logger:       log,
		rateLimitCfg: rateLimitCfg,
	}
}

// RateLimitEnabled 配置开启且有可用的限流器
func (m *MiddlewareManager) RateLimitEnabled() bool {
	return m.rateLimiter != nil && m.rateLimitCfg != nil && m.rateLimitCfg.Enabled
}

// TraceID 沿用请求头里的 X-Request-ID，没有则生成，并回写到响应头
func (m *MiddlewareManager) TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := logger.WithTraceID(c.Request.Context(), c.GetHeader(logger.TraceIDHeader))
		c.Request = c.Request.WithContext(ctx)
		c.Header(logger.TraceIDHeader, logger.GetTraceID(ctx))

		c.Next()
	}
}

func (m *MiddlewareManager) RateLimiterByEndpoint(endpoint string) gin.HandlerFunc {
	rule := ratelimit.GetRuleForEndpoint(endpoint, &ratelimit.RateLimitConfig{
		CreatePerMinute: m.rateLimitCfg.CreatePerMinute,
		ListPerMinute:   m.rateLimitCfg.ListPerMinute,
	})

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := fmt.Sprintf("ip:%s:%s", c.ClientIP(), endpoint)

		allowed, err := m.rateLimiter.Allow(ctx, key, rule.Limit, rule.Window)
		if err != nil {
			m.logger.ErrorContext(ctx, "rate limit check failed",
				zap.Error(err),
				zap.String("key", key),
				zap.String("endpoint", endpoint),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, handlers.ErrorResponse{
				Message: "rate limit check failed",
			})
			return
		}

		if !allowed {
			remaining, err := m.rateLimiter.GetRemaining(ctx, key, rule.Limit, rule.Window)
			if err != nil {
				m.logger.WarnContext(ctx, "failed to read remaining quota",
					zap.Error(err),
					zap.String("key", key),
				)
				remaining = 0
			}
			retryAfter := int(m.rateLimiter.RetryAfter(rule.Window).Seconds())

			c.Header("Retry-After", fmt.Sprint(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitedResponse{
				Message:    "rate limit exceeded",
				RetryAfter: retryAfter,
				Remaining:  remaining,
			})
			return
		}

		c.Next()
	}
}

func (m *MiddlewareManager) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}

		// 按状态码分级
		ctx := c.Request.Context()
		if statusCode >= 500 {
			m.logger.ErrorContext(ctx, "server error", fields...)
		} else if statusCode >= 400 {
			m.logger.WarnContext(ctx, "client error", fields...)
		} else {
			m.logger.InfoContext(ctx, "request completed", fields...)
		}
	}
}

func (m *MiddlewareManager) CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Origin, "+logger.TraceIDHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Expose-Headers", logger.TraceIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (m *MiddlewareManager) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				m.logger.ErrorContext(c.Request.Context(), "panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, handlers.ErrorResponse{
					Message: "internal server error",
				})
			}
		}()

		c.Next()
	}
}
