package common

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorCodeKey WriteError 在 gin context 留下的錯誤種類
const ErrorCodeKey = "error_code"

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// RequestID 取得請求 ID，沒有時產生新的
func RequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	if id := c.Writer.Header().Get("X-Request-ID"); id != "" {
		return id
	}
	return GenerateUUID()
}

// WriteError 寫入錯誤響應
func WriteError(c *gin.Context, err error, debug bool) {
	ce := AsCustomError(err)
	status := ce.Status
	if status == 0 {
		status = StatusForCode(ce.Code)
	}
	c.Set(ErrorCodeKey, ce.Code)
	c.AbortWithStatusJSON(status, ce.ToErrorResponse(debug))
}
