package middleware

import (
	"time"

	"menu-analyzer/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const analysisKey = "analysis_summary"

// AnalysisSummary 分析結果摘要，由 handler 設定後寫進請求日誌
type AnalysisSummary struct {
	Tier       string
	Dishes     int
	TokensUsed int
	ScanID     string
}

// SetAnalysis 記錄本次請求的分析摘要
func SetAnalysis(c *gin.Context, s AnalysisSummary) {
	c.Set(analysisKey, s)
}

// Logger 每個請求一行日誌；4xx 為 warn，5xx 為 error
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", requestid.Get(c)),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("ip", c.ClientIP()),
		}
		if uid := UserID(c); uid != "" {
			fields = append(fields, zap.String("user_id", uid))
		}
		if code := c.GetString(common.ErrorCodeKey); code != "" {
			fields = append(fields, zap.String("error_code", code))
		}
		if v, ok := c.Get(analysisKey); ok {
			if s, ok := v.(AnalysisSummary); ok {
				fields = append(fields,
					zap.String("tier", s.Tier),
					zap.Int("dishes", s.Dishes),
					zap.Int("tokens_used", s.TokensUsed),
				)
				if s.ScanID != "" {
					fields = append(fields, zap.String("scan_id", s.ScanID))
				}
			}
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= 500:
			common.LogError("請求完成", fields...)
		case status >= 400:
			common.LogWarn("請求完成", fields...)
		default:
			common.LogInfo("請求完成", fields...)
		}
	}
}

// Recovery panic 時回傳 internal，不帶 panic 內容
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				common.LogError("Panic recovered",
					zap.Any("error", err),
					zap.String("request_id", requestid.Get(c)),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				common.WriteError(c, common.Internal("Internal server error", nil), false)
			}
		}()

		c.Next()
	}
}
