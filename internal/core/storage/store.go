package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"menu-analyzer/internal/infrastructure/config"
)

var (
	// ErrNotOwned 圖片網址不屬於設定的儲存空間
	ErrNotOwned = errors.New("image url does not belong to the configured store")
	// ErrNotFound 物件不存在
	ErrNotFound = errors.New("image not found")
	// ErrTooLarge 物件超過大小上限
	ErrTooLarge = errors.New("image exceeds maximum size")
	// ErrDeleteUnsupported 此儲存方式無法刪除物件
	ErrDeleteUnsupported = errors.New("delete not supported by this store")
)

// Object 讀取到的圖片
type Object struct {
	Data        []byte
	ContentType string
}

// ImageStore 圖片儲存：以網址查找並讀取，分析後可刪除
type ImageStore interface {
	Name() string
	// Owns 網址是否屬於此儲存空間
	Owns(rawURL string) bool
	// Fetch 讀取圖片，超過 maxBytes 時回傳 ErrTooLarge
	Fetch(ctx context.Context, rawURL string, maxBytes int64) (*Object, error)
	// Delete 刪除圖片，呼叫端只記錄錯誤
	Delete(ctx context.Context, rawURL string) error
	Close() error
}

// ObjectRef bucket 與物件路徑
type ObjectRef struct {
	Bucket string
	Key    string
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("%s/%s", r.Bucket, r.Key)
}

// readLimited 最多讀取 maxBytes，多一個位元組就判定過大
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

func parseHTTPS(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, false
	}
	return u, true
}

func hostAllowed(host string, allowed []string) bool {
	host = strings.ToLower(host)
	for _, h := range allowed {
		if strings.EqualFold(strings.TrimSpace(h), host) {
			return true
		}
	}
	return false
}

// New 依設定建立圖片儲存
func New(ctx context.Context, cfg config.StorageConfig) (ImageStore, error) {
	switch cfg.Backend {
	case "gcs":
		return NewGCSStore(ctx, GCSConfig{
			Bucket:          cfg.Bucket,
			CredentialsFile: cfg.CredentialsFile,
			AllowedHosts:    cfg.AllowedHosts,
		})
	case "s3":
		return NewS3Store(ctx, S3Config{
			Endpoint:      cfg.Endpoint,
			Region:        cfg.Region,
			AccessKey:     cfg.AccessKey,
			SecretKey:     cfg.SecretKey,
			Bucket:        cfg.Bucket,
			PublicBaseURL: cfg.PublicBaseURL,
		})
	case "http":
		return NewHTTPStore(cfg.AllowedHosts, 0), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
