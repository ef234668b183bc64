package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPStore 直接下載允許主機上的公開圖片，無法刪除
type HTTPStore struct {
	client       *resty.Client
	allowedHosts []string
}

// NewHTTPStore 創建 HTTP 下載儲存
func NewHTTPStore(allowedHosts []string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPStore{
		client:       resty.New().SetTimeout(timeout).SetDoNotParseResponse(true),
		allowedHosts: allowedHosts,
	}
}

func (s *HTTPStore) Name() string { return "http" }

func (s *HTTPStore) Owns(rawURL string) bool {
	u, ok := parseHTTPS(rawURL)
	return ok && hostAllowed(u.Host, s.allowedHosts)
}

// Fetch 下載圖片
func (s *HTTPStore) Fetch(ctx context.Context, rawURL string, maxBytes int64) (*Object, error) {
	if !s.Owns(rawURL) {
		return nil, ErrNotOwned
	}

	resp, err := s.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("failed to download image: status code %d", resp.StatusCode())
	}

	data, err := readLimited(body, maxBytes)
	if err != nil {
		return nil, err
	}
	return &Object{Data: data, ContentType: resp.Header().Get("Content-Type")}, nil
}

func (s *HTTPStore) Delete(ctx context.Context, rawURL string) error {
	return ErrDeleteUnsupported
}

func (s *HTTPStore) Close() error { return nil }
