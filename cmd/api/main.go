package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"menu-analyzer/internal/api"
	"menu-analyzer/internal/api/middleware"
	"menu-analyzer/internal/core/ai/service"
	"menu-analyzer/internal/core/analyzer"
	"menu-analyzer/internal/core/image"
	"menu-analyzer/internal/core/menu"
	"menu-analyzer/internal/core/metrics"
	"menu-analyzer/internal/core/scan"
	"menu-analyzer/internal/core/storage"
	"menu-analyzer/internal/infrastructure/config"
	"menu-analyzer/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// 載入 .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.Log.File, cfg.Log.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("ai_model", cfg.AI.Model),
		zap.String("analysis_mode", cfg.AI.AnalysisMode),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("database_driver", cfg.Database.Driver),
	)

	ctx := context.Background()

	// AI 能力；初始化失敗時服務仍啟動，分析請求回報 internal
	aiService := service.NewService(ctx, cfg)
	defer aiService.Close()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		common.LogFatal("Failed to initialize image store", zap.Error(err))
	}
	defer store.Close()

	repo, err := scan.New(ctx, cfg.Database)
	if err != nil {
		common.LogFatal("Failed to initialize scan repository", zap.Error(err))
	}
	defer repo.Close()

	// 指標
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var registerer prometheus.Registerer
	if cfg.Metrics.PrometheusEnabled {
		registerer = registry
	}
	metricsLogger := common.Logger
	if !cfg.Metrics.Enabled {
		metricsLogger = zap.NewNop()
	}
	reporter := metrics.NewReporter(metrics.Options{
		FunctionName:     cfg.Metrics.FunctionName,
		CostPer1KTokens:  cfg.Metrics.CostPer1KTokens,
		CostThresholdEUR: cfg.Metrics.CostThresholdEUR,
		LatencyBudget:    cfg.Metrics.LatencyBudget,
		Registerer:       registerer,
	}, metricsLogger)

	analyzerService := analyzer.NewService(
		aiService,
		store,
		image.NewService(cfg.Image.MaxSizeBytes),
		repo,
		reporter,
		analyzer.Options{
			Mode:                menu.Tier(cfg.AI.AnalysisMode),
			DeleteAfterAnalysis: cfg.Storage.DeleteAfterAnalysis,
			MaxImageBytes:       cfg.Image.MaxSizeBytes,
		},
	)

	// 限流：多實例時使用 Redis
	var limiter middleware.Limiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		if cfg.Redis.Enabled {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer rdb.Close()

			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				common.LogWarn("Redis 連線失敗，改用單機限流", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			} else {
				limiter = middleware.NewRedisLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window)
			}
			cancel()
		}
	}

	// 設置路由
	router, err := api.SetupRouter(cfg, api.Dependencies{
		AI:       aiService,
		Analyzer: analyzerService,
		Repo:     repo,
		Limiter:  limiter,
		Auth:     middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Gatherer: registry,
	})
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	// 設置關閉超時，等待分析中的請求結束
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AI.Timeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	common.LogInfo("Server exited")
}
