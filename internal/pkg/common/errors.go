package common

import (
	"errors"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"message"`           // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CustomError) Unwrap() error { return e.Err }

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// 呼叫端看到的錯誤種類
const (
	CodeInvalidArgument   = "invalid-argument"
	CodeUnauthenticated   = "unauthenticated"
	CodePermissionDenied  = "permission-denied"
	CodeNotFound          = "not-found"
	CodeResourceExhausted = "resource-exhausted"
	CodeDeadlineExceeded  = "deadline-exceeded"
	CodeInternal          = "internal"
	CodeUnimplemented     = "unimplemented"
)

var codeStatus = map[string]int{
	CodeInvalidArgument:   http.StatusBadRequest,
	CodeUnauthenticated:   http.StatusUnauthorized,
	CodePermissionDenied:  http.StatusForbidden,
	CodeNotFound:          http.StatusNotFound,
	CodeResourceExhausted: http.StatusTooManyRequests,
	CodeDeadlineExceeded:  http.StatusGatewayTimeout,
	CodeInternal:          http.StatusInternalServerError,
	CodeUnimplemented:     http.StatusNotImplemented,
}

// StatusForCode 取得錯誤種類對應的 HTTP 狀態碼
func StatusForCode(code string) int {
	if s, ok := codeStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// InvalidArgument 請求參數錯誤
func InvalidArgument(message string, err error) *CustomError {
	return NewError(CodeInvalidArgument, message, http.StatusBadRequest, err)
}

// Unauthenticated 未登入
func Unauthenticated(message string) *CustomError {
	return NewError(CodeUnauthenticated, message, http.StatusUnauthorized, nil)
}

// ResourceExhausted 超出限流或併發上限
func ResourceExhausted(message string, err error) *CustomError {
	return NewError(CodeResourceExhausted, message, http.StatusTooManyRequests, err)
}

// DeadlineExceeded 上游逾時
func DeadlineExceeded(message string, err error) *CustomError {
	return NewError(CodeDeadlineExceeded, message, http.StatusGatewayTimeout, err)
}

// Internal 內部錯誤，訊息固定，細節只記錄在日誌
func Internal(message string, err error) *CustomError {
	return NewError(CodeInternal, message, http.StatusInternalServerError, err)
}

// Unimplemented 功能未實現
func Unimplemented(message string) *CustomError {
	return NewError(CodeUnimplemented, message, http.StatusNotImplemented, nil)
}

// AsCustomError 將任意錯誤轉為 CustomError，未知錯誤一律視為 internal
func AsCustomError(err error) *CustomError {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce
	}
	return Internal("Internal error", err)
}

// ToErrorResponse 產生回應內容，debug 為 true 時附上原始錯誤
func (e *CustomError) ToErrorResponse(debug bool) ErrorResponse {
	resp := ErrorResponse{Code: e.Code, Message: e.Message}
	if debug && e.Err != nil && e.Code != CodeInternal {
		resp.Details = e.Err.Error()
	}
	return resp
}

// 預定義錯誤
var (
	ErrUnauthenticated  = Unauthenticated("User must be authenticated")
	ErrTooManyRequests  = ResourceExhausted("Too many requests", nil)
	ErrFeedbackDisabled = Unimplemented("Feedback temporarily disabled")
)
