package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Gopher0727/SocialSync/config"
)

// HealthCheck probes one dependency for /health.
type HealthCheck func(ctx context.Context) error

// RouterOptions 构建 gin 引擎所需的依赖
type RouterOptions struct {
	Config     *config.Config
	Middleware *MiddlewareManager
	Metrics    *Metrics
	Handlers   *Handlers
	Health     map[string]HealthCheck
}

// NewRouter 创建 gin 引擎并挂载中间件与路由
func NewRouter(opts RouterOptions) *gin.Engine {
	gin.SetMode(opts.Config.Server.Mode)

	r := gin.New()
	mw := opts.Middleware
	r.Use(mw.Recovery(), mw.Trace(), mw.CORS(), mw.Logger())
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	r.GET("/health", healthHandler(opts.Health))

	// 本地存储时由本服务直接提供上传文件
	if opts.Config.Storage.Driver == "local" {
		r.Static(uploadsPath(opts.Config.Storage.Local.BaseURL), opts.Config.Storage.Local.Root)
	}

	RegisterRoutes(r, mw, opts.Handlers)
	return r
}

// uploadsPath is the path part of the local blob base url, "/uploads" by default.
func uploadsPath(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "/uploads"
	}
	return u.Path
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}
		result := "ok"
		if status != http.StatusOK {
			result = "degraded"
		}
		c.JSON(status, gin.H{"status": result, "dependencies": deps})
	}
}
