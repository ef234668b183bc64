package menu

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"menu-analyzer/internal/api/middleware"
	"menu-analyzer/internal/core/analyzer"
	menuCore "menu-analyzer/internal/core/menu"
	"menu-analyzer/internal/core/scan"
	"menu-analyzer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AnalyzeRequest 菜單分析請求
type AnalyzeRequest struct {
	ImageURL  string                    `json:"imageUrl"`
	UserPrefs *menuCore.UserPreferences `json:"userPrefs,omitempty"`
}

// ScansResponse 掃描紀錄列表
type ScansResponse struct {
	Scans []menuCore.MenuScan `json:"scans"`
}

// Analyzer 分析服務
type Analyzer interface {
	Analyze(ctx context.Context, in analyzer.Input) (*menuCore.AnalysisResult, error)
}

// Handler 菜單相關 API
type Handler struct {
	analyzer Analyzer
	repo     scan.Repository
	debug    bool
}

// NewHandler 創建處理器；repo 可為 nil
func NewHandler(a Analyzer, repo scan.Repository, debug bool) *Handler {
	return &Handler{
		analyzer: a,
		repo:     repo,
		debug:    debug,
	}
}

// Analyze POST /api/v1/menu/analyze
func (h *Handler) Analyze(c *gin.Context) {
	requestID := common.RequestID(c)

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("請求格式無效",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		common.WriteError(c, common.InvalidArgument("Invalid request body", err), h.debug)
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), analyzer.Input{
		ImageURL:  req.ImageURL,
		Prefs:     req.UserPrefs,
		UserID:    middleware.UserID(c),
		RequestID: requestID,
	})
	if err != nil {
		common.WriteError(c, err, h.debug)
		return
	}

	middleware.SetAnalysis(c, middleware.AnalysisSummary{
		Tier:       string(result.Tier),
		Dishes:     len(result.Dishes),
		TokensUsed: result.TokensUsed,
		ScanID:     result.ScanID,
	})
	c.JSON(http.StatusOK, result)
}

// ListScans GET /api/v1/scans?limit=N
func (h *Handler) ListScans(c *gin.Context) {
	if h.repo == nil {
		common.WriteError(c, common.Unimplemented("Scan history is not configured"), h.debug)
		return
	}

	limit := scan.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			common.WriteError(c, common.InvalidArgument("limit must be a positive integer", err), h.debug)
			return
		}
		limit = n
	}

	scans, err := h.repo.ListScans(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		common.LogError("讀取掃描紀錄失敗",
			zap.String("request_id", common.RequestID(c)),
			zap.Error(err),
		)
		common.WriteError(c, common.Internal("Failed to list scans", err), h.debug)
		return
	}
	if scans == nil {
		scans = []menuCore.MenuScan{}
	}

	c.JSON(http.StatusOK, ScansResponse{Scans: scans})
}

// GetPreferences GET /api/v1/preferences；沒有保存過時回傳空偏好
func (h *Handler) GetPreferences(c *gin.Context) {
	if h.repo == nil {
		common.WriteError(c, common.Unimplemented("Preferences are not configured"), h.debug)
		return
	}

	prefs, err := h.repo.GetPreferences(c.Request.Context(), middleware.UserID(c))
	if err != nil && !errors.Is(err, scan.ErrNotFound) {
		common.LogError("讀取使用者偏好失敗",
			zap.String("request_id", common.RequestID(c)),
			zap.Error(err),
		)
		common.WriteError(c, common.Internal("Failed to load preferences", err), h.debug)
		return
	}

	c.JSON(http.StatusOK, menuCore.SanitizePreferences(prefs))
}

// PutPreferences PUT /api/v1/preferences
func (h *Handler) PutPreferences(c *gin.Context) {
	if h.repo == nil {
		common.WriteError(c, common.Unimplemented("Preferences are not configured"), h.debug)
		return
	}

	var prefs menuCore.UserPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		common.WriteError(c, common.InvalidArgument("Invalid request body", err), h.debug)
		return
	}
	prefs = menuCore.SanitizePreferences(prefs)

	if err := h.repo.SavePreferences(c.Request.Context(), middleware.UserID(c), prefs); err != nil {
		common.LogError("保存使用者偏好失敗",
			zap.String("request_id", common.RequestID(c)),
			zap.Error(err),
		)
		common.WriteError(c, common.Internal("Failed to save preferences", err), h.debug)
		return
	}

	c.JSON(http.StatusOK, prefs)
}

// Feedback POST /api/v1/feedback；修正功能尚未開放
func (h *Handler) Feedback(c *gin.Context) {
	if middleware.UserID(c) == "" {
		common.WriteError(c, common.ErrUnauthenticated, h.debug)
		return
	}
	common.WriteError(c, common.ErrFeedbackDisabled, h.debug)
}
