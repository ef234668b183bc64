package analyzer

import (
	"context"
	"errors"
	"strings"
	"time"

	"menu-analyzer/internal/core/ai/provider"
	"menu-analyzer/internal/core/ai/queue"
	aiservice "menu-analyzer/internal/core/ai/service"
	"menu-analyzer/internal/core/image"
	"menu-analyzer/internal/core/menu"
	"menu-analyzer/internal/core/metrics"
	"menu-analyzer/internal/core/scan"
	"menu-analyzer/internal/core/storage"
	"menu-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

// 對外錯誤訊息固定，不帶上游細節
const (
	msgAnalysisFailed  = "Failed to analyze menu"
	msgAnalysisTimeout = "Menu analysis timed out"
	msgTooManyRequests = "Too many concurrent analyses, please retry later"
)

// Generator AI 能力；Available 為 false 時不可呼叫 Generate
type Generator interface {
	Available() bool
	Model() string
	Generate(ctx context.Context, req *provider.Request) (*provider.Response, error)
}

// Options 分析設定
type Options struct {
	Mode                menu.Tier
	DeleteAfterAnalysis bool
	MaxImageBytes       int64
}

// Input 一次分析請求
type Input struct {
	ImageURL  string
	Prefs     *menu.UserPreferences
	UserID    string
	RequestID string
}

// Service 菜單分析流程：讀圖、呼叫模型、解析、驗證、排序、保存
type Service struct {
	ai       Generator
	store    storage.ImageStore
	images   *image.Service
	repo     scan.Repository
	reporter *metrics.Reporter
	opts     Options
}

// NewService 創建分析服務；store、repo 可為 nil
func NewService(ai Generator, store storage.ImageStore, images *image.Service, repo scan.Repository, reporter *metrics.Reporter, opts Options) *Service {
	if reporter == nil {
		reporter = metrics.NewReporter(metrics.Options{}, nil)
	}
	if images == nil {
		images = image.NewService(opts.MaxImageBytes)
	}
	if opts.Mode == "" {
		opts.Mode = menu.TierBasic
	}
	return &Service{
		ai:       ai,
		store:    store,
		images:   images,
		repo:     repo,
		reporter: reporter,
		opts:     opts,
	}
}

// Analyze 執行完整分析；失敗時不回傳部分結果
func (s *Service) Analyze(ctx context.Context, in Input) (*menu.AnalysisResult, error) {
	start := time.Now()
	imageURL := strings.TrimSpace(in.ImageURL)

	if imageURL == "" {
		return nil, s.reject(start, common.InvalidArgument("Image URL is required", nil))
	}
	if s.store == nil || !s.store.Owns(imageURL) {
		return nil, s.reject(start, common.InvalidArgument("Invalid image URL", storage.ErrNotOwned))
	}
	if s.opts.DeleteAfterAnalysis {
		defer s.deleteImage(ctx, imageURL, in.RequestID)
	}

	prefs := s.preferences(ctx, in)

	if s.ai == nil || !s.ai.Available() {
		return nil, s.fail(start, in, aiservice.ErrUnavailable, "")
	}

	obj, err := s.store.Fetch(ctx, imageURL, s.images.MaxSizeBytes())
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, s.reject(start, common.InvalidArgument("Image not found", err))
		case errors.Is(err, storage.ErrTooLarge):
			return nil, s.reject(start, common.InvalidArgument("Image too large", err))
		}
		return nil, s.fail(start, in, err, "")
	}
	info, err := s.images.Validate(obj.Data)
	if err != nil {
		return nil, s.reject(start, common.InvalidArgument("Unsupported image", err))
	}

	var (
		parsed menu.Parsed
		tier   menu.Tier
		tokens int
		model  = s.ai.Model()
	)
	plan := menu.Plan(s.opts.Mode)
	for i, t := range plan {
		tier = t
		parsed, err = s.runTier(ctx, t, prefs, obj.Data, info.MIMEType, in.RequestID, &tokens, &model)
		if err == nil {
			break
		}
		if i+1 < len(plan) && menu.ShouldFallback(err) {
			common.LogWarn("進階分析失敗，改用基本分析",
				zap.String("request_id", in.RequestID),
				zap.Error(err),
			)
			s.reporter.ObserveFallback()
			continue
		}
		return nil, s.fail(start, in, err, tier)
	}

	dishes, report := menu.ValidateDishes(parsed.Items, tier)
	s.observeValidation(report, in.RequestID)

	result := &menu.AnalysisResult{
		Dishes:           menu.RankDishes(dishes, prefs),
		Model:            model,
		ProcessingMs:     time.Since(start).Milliseconds(),
		MenuInsights:     parsed.MenuInsights,
		NutritionSummary: parsed.NutritionSummary,
		Tier:             tier,
		TokensUsed:       tokens,
	}

	s.reporter.Record(metrics.Invocation{
		Duration:   time.Since(start),
		TokensUsed: tokens,
		Success:    true,
		Tier:       string(tier),
		Model:      model,
	})

	common.LogInfo("菜單分析完成",
		zap.String("request_id", in.RequestID),
		zap.String("tier", string(tier)),
		zap.Int("dishes", len(result.Dishes)),
		zap.Int64("processing_ms", result.ProcessingMs),
	)

	result.ScanID = s.persist(ctx, in, imageURL, result)
	return result, nil
}

func (s *Service) runTier(ctx context.Context, tier menu.Tier, prefs menu.UserPreferences, img []byte, mime, requestID string, tokens *int, model *string) (menu.Parsed, error) {
	resp, err := s.ai.Generate(ctx, &provider.Request{
		Prompt:    menu.BuildPrompt(tier, prefs),
		Image:     img,
		MIMEType:  mime,
		RequestID: requestID,
	})
	if err != nil {
		return menu.Parsed{}, err
	}
	*tokens += resp.Usage.TotalTokens
	if resp.Model != "" {
		*model = resp.Model
	}
	if strings.TrimSpace(resp.Content) == "" {
		return menu.Parsed{}, provider.ErrEmptyResponse
	}
	return menu.ParseResponse(resp.Content, tier)
}

// preferences 請求沒帶偏好時使用已保存的偏好
func (s *Service) preferences(ctx context.Context, in Input) menu.UserPreferences {
	if in.Prefs != nil {
		return menu.SanitizePreferences(*in.Prefs)
	}
	if in.UserID == "" || s.repo == nil {
		return menu.UserPreferences{}
	}
	stored, err := s.repo.GetPreferences(ctx, in.UserID)
	if err != nil {
		if !errors.Is(err, scan.ErrNotFound) {
			common.LogWarn("讀取使用者偏好失敗", zap.String("user_id", in.UserID), zap.Error(err))
		}
		return menu.UserPreferences{}
	}
	return menu.SanitizePreferences(stored)
}

func (s *Service) observeValidation(report menu.ValidationReport, requestID string) {
	if report.Dropped == 0 && len(report.Clamped) == 0 {
		return
	}
	fields := make([]string, 0, len(report.Clamped))
	for _, ev := range report.Clamped {
		fields = append(fields, ev.Field)
		common.LogWarn("菜色數值超出範圍",
			zap.String("request_id", requestID),
			zap.String("dish", ev.Dish),
			zap.String("field", ev.Field),
			zap.Float64("value", ev.Value),
		)
	}
	if report.Dropped > 0 {
		common.LogWarn("丟棄無名稱的菜色",
			zap.String("request_id", requestID),
			zap.Int("dropped", report.Dropped),
			zap.Int("input", report.Input),
		)
	}
	s.reporter.ObserveValidation(fields, report.Dropped)
}

func (s *Service) persist(ctx context.Context, in Input, imageURL string, result *menu.AnalysisResult) string {
	if in.UserID == "" || s.repo == nil {
		return ""
	}
	record := &menu.MenuScan{
		UserID:       in.UserID,
		ImageURL:     imageURL,
		Dishes:       result.Dishes,
		Model:        result.Model,
		ProcessingMs: result.ProcessingMs,
	}
	if err := s.repo.SaveScan(context.WithoutCancel(ctx), record); err != nil {
		common.LogError("保存掃描紀錄失敗",
			zap.String("request_id", in.RequestID),
			zap.String("user_id", in.UserID),
			zap.Error(err),
		)
		return ""
	}
	return record.ID
}

// deleteImage 分析結束後刪除原圖，失敗只記錄
func (s *Service) deleteImage(ctx context.Context, imageURL, requestID string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), imageURL); err != nil {
		common.LogWarn("刪除圖片失敗",
			zap.String("request_id", requestID),
			zap.String("store", s.store.Name()),
			zap.Error(err),
		)
		return
	}
	common.LogDebug("已刪除圖片", zap.String("request_id", requestID))
}

// reject 請求本身不合法
func (s *Service) reject(start time.Time, err *common.CustomError) error {
	s.reporter.Record(metrics.Invocation{
		Duration:  time.Since(start),
		ErrorKind: err.Code,
	})
	return err
}

// fail 上游或內部失敗：完整記錄，對外只回傳固定訊息
func (s *Service) fail(start time.Time, in Input, err error, tier menu.Tier) error {
	elapsed := time.Since(start)
	kind := errorKind(err)

	s.reporter.Record(metrics.Invocation{
		Duration:  elapsed,
		ErrorKind: kind,
		Tier:      string(tier),
	})
	common.LogError("菜單分析失敗",
		zap.String("request_id", in.RequestID),
		zap.String("kind", kind),
		zap.String("tier", string(tier)),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
	)

	switch kind {
	case string(provider.KindTimeout):
		return common.DeadlineExceeded(msgAnalysisTimeout, err)
	case "busy":
		return common.ResourceExhausted(msgTooManyRequests, err)
	}
	return common.Internal(msgAnalysisFailed, err)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, queue.ErrFull):
		return "busy"
	case errors.Is(err, aiservice.ErrUnavailable):
		return "ai_unavailable"
	case errors.Is(err, menu.ErrMalformedOutput):
		return "malformed_output"
	case errors.Is(err, context.DeadlineExceeded):
		return string(provider.KindTimeout)
	}
	if k := provider.KindOf(err); k != "" {
		return string(k)
	}
	return "internal"
}
