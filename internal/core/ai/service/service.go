package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"menu-analyzer/internal/core/ai/gemini"
	"menu-analyzer/internal/core/ai/openrouter"
	"menu-analyzer/internal/core/ai/provider"
	"menu-analyzer/internal/core/ai/queue"
	"menu-analyzer/internal/infrastructure/config"
	"menu-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrUnavailable AI 服務未啟用或初始化失敗
var ErrUnavailable = errors.New("AI service is not available")

// Health AI 服務狀態
type Health struct {
	AIAvailable    bool         `json:"aiAvailable"`
	ProviderLoaded bool         `json:"providerLoaded"`
	AIInitialized  bool         `json:"aiInitialized"`
	Provider       string       `json:"provider"`
	Model          string       `json:"model"`
	DisabledReason string       `json:"disabledReason,omitempty"`
	Queue          queue.Status `json:"queue"`
	Timestamp      time.Time    `json:"timestamp"`
}

// Service AI 能力的持有者。provider 為 nil 代表能力不存在，每個呼叫點都要檢查。
type Service struct {
	provider     provider.Provider
	providerName string
	model        string
	reason       string
	limiter      *queue.Manager
}

// NewService 依設定建立 AI 服務；初始化失敗時回傳停用狀態而不是錯誤
func NewService(ctx context.Context, cfg *config.Config) *Service {
	limiter := queue.NewManager(cfg.AI.MaxInFlight)
	s := &Service{
		providerName: cfg.AI.Provider,
		model:        cfg.AI.Model,
		limiter:      limiter,
	}

	if !cfg.AI.Enabled {
		s.reason = "disabled by configuration"
		common.LogWarn("AI 服務已停用", zap.String("reason", s.reason))
		return s
	}

	pcfg := provider.Config{
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Timeout:     cfg.AI.Timeout,
		BaseURL:     cfg.AI.BaseURL,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
		AppName:     cfg.App.Name,
		Referer:     "https://" + cfg.App.Name,
	}

	var (
		p   provider.Provider
		err error
	)
	switch cfg.AI.Provider {
	case "gemini":
		p, err = gemini.NewClient(ctx, pcfg)
	case "openrouter":
		p, err = openrouter.NewClient(pcfg)
	default:
		err = fmt.Errorf("unsupported ai provider %q", cfg.AI.Provider)
	}
	if err != nil {
		s.reason = err.Error()
		common.LogError("AI 服務初始化失敗", zap.String("provider", cfg.AI.Provider), zap.Error(err))
		return s
	}

	s.provider = p
	common.LogInfo("AI 服務初始化完成",
		zap.String("provider", p.Name()),
		zap.String("model", p.GetModel()),
		zap.Int("max_in_flight", cfg.AI.MaxInFlight),
	)
	return s
}

// NewWithProvider 直接使用指定的提供者，p 為 nil 時為停用狀態
func NewWithProvider(p provider.Provider, maxInFlight int) *Service {
	s := &Service{limiter: queue.NewManager(maxInFlight)}
	if p == nil {
		s.reason = "no provider configured"
		return s
	}
	s.provider = p
	s.providerName = p.Name()
	s.model = p.GetModel()
	return s
}

// Available AI 能力是否存在
func (s *Service) Available() bool {
	return s != nil && s.provider != nil
}

// Model 目前的模型名稱
func (s *Service) Model() string {
	if s.provider != nil {
		return s.provider.GetModel()
	}
	return s.model
}

// Generate 在併發上限內呼叫上游一次
func (s *Service) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if !s.Available() {
		return nil, ErrUnavailable
	}

	release, err := s.limiter.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	resp, err := s.provider.Generate(ctx, req)
	common.LogAICall(s.provider.Name(), s.provider.GetModel(), time.Since(start), err, req.RequestID)
	if err != nil {
		return nil, provider.Classify(err)
	}
	return resp, nil
}

// Health 回報 AI 服務狀態
func (s *Service) Health() Health {
	h := Health{
		AIAvailable:    s.Available(),
		ProviderLoaded: s.providerName != "",
		AIInitialized:  s.Available(),
		Provider:       s.providerName,
		Model:          s.Model(),
		DisabledReason: s.reason,
		Queue:          s.limiter.GetQueueStatus(),
		Timestamp:      time.Now().UTC(),
	}
	return h
}

// Close 釋放提供者資源
func (s *Service) Close() error {
	if s.provider == nil {
		return nil
	}
	return s.provider.Close()
}
