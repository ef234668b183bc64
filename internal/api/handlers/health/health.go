package health

import (
	"net/http"
	"runtime"
	"time"

	"menu-analyzer/internal/core/ai/queue"
	"menu-analyzer/internal/core/ai/service"
	"menu-analyzer/internal/infrastructure/config"
	"menu-analyzer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Version     string                 `json:"version"`
	AIAvailable bool                   `json:"ai_available"`
	Runtime     map[string]interface{} `json:"runtime"`
	Queue       *queue.Status          `json:"queue,omitempty"`
}

// HealthCheck 健康檢查處理器
func HealthCheck(c *gin.Context) {
	cfg, ok := c.MustGet("config").(*config.Config)
	if !ok {
		common.LogError("Invalid configuration type in context")
		common.WriteError(c, common.Internal("Configuration not found", nil), false)
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   cfg.App.Version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}

	if aiSvc, ok := c.Get("ai_service"); ok {
		if svc, ok := aiSvc.(*service.Service); ok {
			h := svc.Health()
			response.AIAvailable = h.AIAvailable
			response.Queue = &h.Queue
		}
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck AI 能力不存在時回報未就緒
func ReadinessCheck(c *gin.Context) {
	if aiSvc, ok := c.Get("ai_service"); ok {
		if svc, ok := aiSvc.(*service.Service); ok && !svc.Available() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"reason": svc.Health().DisabledReason,
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// LivenessCheck 存活檢查處理器
func LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
