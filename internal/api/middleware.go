package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Gopher0727/SocialSync/config"
	"github.com/Gopher0727/SocialSync/internal/apperr"
	"github.com/Gopher0727/SocialSync/internal/handler"
	"github.com/Gopher0727/SocialSync/internal/service"
	"github.com/Gopher0727/SocialSync/internal/session"
	"github.com/Gopher0727/SocialSync/middleware/jwt"
	logger "github.com/Gopher0727/SocialSync/middleware/log"
	"github.com/Gopher0727/SocialSync/utils/ratelimit"
)

// TraceHeader carries the request id in and out.
const TraceHeader = "X-Request-ID"

type MiddlewareManager struct {
	authService  service.IAuthService
	rateLimiter  ratelimit.Limiter
	rateLimitCfg *config.RateLimitConfig
	serverCfg    *config.ServerConfig
	logger       *logger.Logger
}

// NewMiddlewareManager builds the gin middlewares. rateLimiter may be nil, which disables throttling.
func NewMiddlewareManager(
	authService service.IAuthService,
	rateLimiter ratelimit.Limiter,
	rateLimitCfg *config.RateLimitConfig,
	serverCfg *config.ServerConfig,
	log *logger.Logger,
) *MiddlewareManager {
	if log == nil {
		log = logger.NewNop()
	}
	return &MiddlewareManager{
		authService:  authService,
		rateLimiter:  rateLimiter,
		rateLimitCfg: rateLimitCfg,
		serverCfg:    serverCfg,
		logger:       log,
	}
}

// Trace 为每个请求分配 trace id（优先使用客户端传入的 X-Request-ID）
func (m *MiddlewareManager) Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := logger.WithTraceID(c.Request.Context(), c.GetHeader(TraceHeader))
		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceHeader, logger.GetTraceID(ctx))
		c.Next()
	}
}

// SessionGate authenticates the bearer token and stores the session.
// Browsers cannot set headers on websocket handshakes, so upgrades may pass ?token= instead.
func (m *MiddlewareManager) SessionGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := jwt.BearerToken(c.GetHeader("Authorization"))
		if !ok && websocket.IsWebSocketUpgrade(c.Request) {
			token = c.Query("token")
			ok = token != ""
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authorization header required",
			})
			return
		}

		sess, err := m.authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			m.logger.WarnContext(c.Request.Context(), "token validation failed",
				zap.String("error", apperr.Message(err)),
				zap.String("ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(handler.StatusOf(err), gin.H{
				"error": apperr.Message(err),
			})
			return
		}

		session.Set(c, sess)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), sess.UserID))
		c.Next()
	}
}

// RateLimit throttles per user when signed in, otherwise per client ip.
func (m *MiddlewareManager) RateLimit(ruleName string) gin.HandlerFunc {
	if m.rateLimiter == nil || !m.rateLimitCfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	rule := ratelimit.RuleFor(ruleName, m.rateLimitCfg)

	return func(c *gin.Context) {
		var key string
		if sess, ok := session.FromGin(c); ok {
			key = "user:" + sess.UserID
		} else {
			key = "ip:" + c.ClientIP()
		}

		decision, err := m.rateLimiter.Allow(c.Request.Context(), rule, key)
		if err != nil {
			// fail-closed 时 limiter 才会返回错误
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "rate limit check failed",
			})
			return
		}
		if decision.Remaining >= 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		}
		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter.Round(time.Second).Seconds())
			if retryAfter <= 0 {
				retryAfter = int(rule.Window.Seconds())
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}

// Logger 访问日志，按状态码选择级别
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
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.Last().Error()))
		}

		log := m.logger.WithContext(c.Request.Context())
		switch {
		case statusCode >= 500:
			log.Error("server error", fields...)
		case statusCode >= 400:
			log.Warn("client error", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}

// CORS 未配置 allowed_origins 时放行所有来源
func (m *MiddlewareManager) CORS() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", TraceHeader)
	cfg.ExposeHeaders = []string{TraceHeader, "Retry-After"}
	if m.serverCfg == nil || len(m.serverCfg.AllowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = m.serverCfg.AllowedOrigins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
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
				_ = c.Error(fmt.Errorf("panic: %v", err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()

		c.Next()
	}
}
