package handlers

import (
	"net/http"

	"menu-analyzer/internal/core/ai/service"

	"github.com/gin-gonic/gin"
)

// AIHandler AI 處理器
type AIHandler struct {
	aiService *service.Service
}

// NewAIHandler 創建 AI 處理器
func NewAIHandler(aiService *service.Service) *AIHandler {
	return &AIHandler{
		aiService: aiService,
	}
}

// Health 回報 AI 能力是否存在，不需要登入
func (h *AIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.aiService.Health())
}
