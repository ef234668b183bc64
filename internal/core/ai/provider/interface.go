package provider

import (
	"context"
	"time"
)

// Request 表示發送到 AI 提供者的請求，一次請求只帶一張圖片
type Request struct {
	Prompt    string
	Image     []byte
	MIMEType  string
	RequestID string
}

// Usage token 用量，未知時為 0
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response 表示從 AI 提供者收到的原始文字
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Provider 定義 AI 提供者介面。
// Generate 每次呼叫只會對上游送出一次請求，不做重試。
type Provider interface {
	// Generate 生成 AI 響應
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Name 提供者名稱
	Name() string

	// GetModel 獲取當前使用的模型名稱
	GetModel() string

	// GetTimeout 獲取請求超時時間
	GetTimeout() time.Duration

	// Close 關閉提供者連接
	Close() error
}

// Config 定義 AI 提供者配置
type Config struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	BaseURL     string
	MaxTokens   int
	Temperature float64
	AppName     string
	Referer     string
}
