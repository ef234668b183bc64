package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"menu-analyzer/internal/core/ai/provider"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client Gemini 視覺模型
type Client struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	name    string
	timeout time.Duration
}

// NewClient 創建 Gemini 客戶端，金鑰為空時回傳錯誤
func NewClient(ctx context.Context, cfg provider.Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("gemini model is empty")
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	m := cl.GenerativeModel(model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(float32(cfg.Temperature)),
		ResponseMIMEType: "application/json",
	}
	if cfg.MaxTokens > 0 {
		m.GenerationConfig.MaxOutputTokens = ptrInt32(int32(cfg.MaxTokens))
	}

	return &Client{
		client:  cl,
		model:   m,
		name:    model,
		timeout: cfg.Timeout,
	}, nil
}

func (c *Client) Name() string              { return "gemini" }
func (c *Client) GetModel() string          { return c.name }
func (c *Client) GetTimeout() time.Duration { return c.timeout }

// Generate 送出圖片與指令，回傳模型的原始文字
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	parts := []genai.Part{}
	if len(req.Image) > 0 {
		parts = append(parts, &genai.Blob{MIMEType: req.MIMEType, Data: req.Image})
	}
	parts = append(parts, genai.Text(req.Prompt))

	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return nil, provider.Classify(err)
	}

	txt := firstText(resp)
	if strings.TrimSpace(txt) == "" {
		return nil, provider.ErrEmptyResponse
	}

	out := &provider.Response{Content: txt, Model: c.name}
	if resp.UsageMetadata != nil {
		out.Usage = provider.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// Close 關閉提供者連接
func (c *Client) Close() error {
	return c.client.Close()
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}

func ptrFloat32(f float32) *float32 { return &f }
func ptrInt32(i int32) *int32       { return &i }
