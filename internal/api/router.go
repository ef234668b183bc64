package api

import (
	"context"
	"errors"
	"time"

	"menu-analyzer/internal/api/handlers"
	"menu-analyzer/internal/api/handlers/health"
	menuHandler "menu-analyzer/internal/api/handlers/menu"
	"menu-analyzer/internal/api/middleware"
	"menu-analyzer/internal/core/ai/service"
	"menu-analyzer/internal/core/scan"
	"menu-analyzer/internal/infrastructure/config"
	"menu-analyzer/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 60 * time.Second

// Dependencies 路由需要的服務，由 main 組裝
type Dependencies struct {
	AI       *service.Service
	Analyzer menuHandler.Analyzer
	Repo     scan.Repository
	Limiter  middleware.Limiter
	Auth     *middleware.Authenticator
	Gatherer prometheus.Gatherer
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) (*gin.Engine, error) {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if deps.AI == nil || deps.Analyzer == nil {
		return nil, errors.New("ai service and analyzer are required")
	}
	if deps.Auth == nil {
		deps.Auth = middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	}
	if deps.Limiter == nil && cfg.RateLimit.Enabled {
		deps.Limiter = middleware.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if cfg.Server.MaxBodyBytes > 0 {
		router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))
	}

	// 請求超時與服務注入
	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Set("config", cfg)
		c.Set("ai_service", deps.AI)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeout),
			)
			common.WriteError(c, common.DeadlineExceeded("Request timeout", ctx.Err()), false)
		}
	})

	// 健康檢查路由
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	if cfg.Metrics.PrometheusEnabled && deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	menuH := menuHandler.NewHandler(deps.Analyzer, deps.Repo, cfg.App.Debug)
	aiH := handlers.NewAIHandler(deps.AI)

	api := router.Group("/api/v1")
	api.Use(middleware.Authenticate(deps.Auth, false))
	{
		api.GET("/ai/health", aiH.Health)

		var analyze []gin.HandlerFunc
		if cfg.Auth.Required {
			analyze = append(analyze, middleware.RequireUser())
		}
		if deps.Limiter != nil {
			analyze = append(analyze, middleware.RateLimit(deps.Limiter))
		}
		analyze = append(analyze, menuH.Analyze)
		api.POST("/menu/analyze", analyze...)

		// Feedback 自行判斷登入狀態
		api.POST("/feedback", menuH.Feedback)

		user := api.Group("")
		user.Use(middleware.RequireUser())
		{
			user.GET("/scans", menuH.ListScans)
			user.GET("/preferences", menuH.GetPreferences)
			user.PUT("/preferences", menuH.PutPreferences)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.String("ai_provider", deps.AI.Health().Provider),
		zap.Bool("ai_available", deps.AI.Available()),
		zap.Bool("auth_required", cfg.Auth.Required),
		zap.Bool("repository_configured", deps.Repo != nil),
		zap.Duration("timeout", timeout),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
	)

	return router, nil
}
