package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// Kind 上游失敗的種類
type Kind string

const (
	KindUnavailable   Kind = "unavailable"
	KindUnauthorized  Kind = "unauthorized"
	KindTimeout       Kind = "timeout"
	KindEmptyResponse Kind = "empty_response"
)

// Error 已分類的上游錯誤
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "upstream " + string(e.Kind)
	}
	return fmt.Sprintf("upstream %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusError 帶 HTTP 狀態碼的上游錯誤，由各提供者回傳
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// ErrEmptyResponse 模型回傳空白內容
var ErrEmptyResponse = &Error{Kind: KindEmptyResponse, Err: errors.New("empty response from AI service")}

// KindOf 取得錯誤種類，非上游錯誤回傳空字串
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// Classify 將提供者的原始錯誤分類；已分類的錯誤原樣回傳
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}

	if status := statusCode(err); status != 0 {
		return &Error{Kind: kindForStatus(status), StatusCode: status, Err: err}
	}

	return &Error{Kind: kindForMessage(err.Error()), Err: err}
}

func statusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr.StatusCode
	}
	return 0
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUnavailable
	}
}

// 沒有狀態碼時只能從訊息判斷
func kindForMessage(msg string) Kind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "quota"), strings.Contains(m, "resource exhausted"), strings.Contains(m, "rate limit"):
		return KindUnavailable
	case strings.Contains(m, "unauthorized"), strings.Contains(m, "permission denied"),
		strings.Contains(m, "api key"), strings.Contains(m, "unauthenticated"):
		return KindUnauthorized
	case strings.Contains(m, "timeout"), strings.Contains(m, "deadline exceeded"), strings.Contains(m, "timed out"):
		return KindTimeout
	default:
		return KindUnavailable
	}
}
