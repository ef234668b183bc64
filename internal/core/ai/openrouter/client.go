package openrouter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"menu-analyzer/internal/core/ai/provider"
	"menu-analyzer/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Client OpenRouter 服務，走 OpenAI 相容的 chat completions
type Client struct {
	client      *resty.Client
	model       string
	timeout     time.Duration
	maxTokens   int
	temperature float64
}

// TextContent 文字訊息
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ImageContent 圖片訊息
type ImageContent struct {
	Type     string `json:"type"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

// Message 對話訊息
type Message struct {
	Role    string        `json:"role"`
	Content []interface{} `json:"content"`
}

// Request chat completions 請求
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

// Response chat completions 回應
type Response struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage provider.Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// NewClient 創建 OpenRouter 客戶端
func NewClient(cfg provider.Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("OPENROUTER_API_KEY is empty")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("Content-Type", "application/json").
		SetHeader("HTTP-Referer", cfg.Referer).
		SetHeader("X-Title", cfg.AppName)

	return &Client{
		client:      client,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (c *Client) Name() string              { return "openrouter" }
func (c *Client) GetModel() string          { return c.model }
func (c *Client) GetTimeout() time.Duration { return c.timeout }

// Generate 生成回應，只發送一次請求
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	content := []interface{}{TextContent{Type: "text", Text: req.Prompt}}
	if len(req.Image) > 0 {
		img := ImageContent{Type: "image_url"}
		img.ImageURL.URL = fmt.Sprintf("data:%s;base64,%s", req.MIMEType, base64.StdEncoding.EncodeToString(req.Image))
		content = append(content, img)
	}

	body := Request{
		Model:       c.model,
		Messages:    []Message{{Role: "user", Content: content}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return nil, provider.Classify(fmt.Errorf("failed to send request to OpenRouter: %w", err))
	}

	if resp.StatusCode() != http.StatusOK {
		common.LogDebug("OpenRouter 回應錯誤",
			zap.Int("status", resp.StatusCode()),
			zap.String("request_id", req.RequestID),
		)
		return nil, provider.Classify(&provider.StatusError{
			StatusCode: resp.StatusCode(),
			Body:       sanitizeResponse(resp.Body()),
		})
	}

	var result Response
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, provider.Classify(fmt.Errorf("failed to parse OpenRouter response: %w", err))
	}
	if result.Error != nil {
		return nil, provider.Classify(&provider.StatusError{StatusCode: result.Error.Code, Body: result.Error.Message})
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return nil, provider.ErrEmptyResponse
	}

	model := result.Model
	if model == "" {
		model = c.model
	}
	return &provider.Response{
		Content: result.Choices[0].Message.Content,
		Model:   model,
		Usage:   result.Usage,
	}, nil
}

// Close 關閉提供者連接
func (c *Client) Close() error {
	return nil
}

// sanitizeResponse 錯誤內容可能夾帶圖片資料，記錄前先截斷
func sanitizeResponse(body []byte) string {
	s := string(body)
	if strings.Contains(s, "data:image/") || (len(s) > 100 && strings.Contains(s, "base64")) {
		return "[IMAGE_DATA_REMOVED]"
	}
	if len(s) > 512 {
		return s[:512] + "..."
	}
	return s
}
