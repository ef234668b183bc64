package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const (
	firebaseHost = "firebasestorage.googleapis.com"
	gcsHost      = "storage.googleapis.com"
)

// GCSConfig Firebase Storage / GCS 設定
type GCSConfig struct {
	Bucket          string
	CredentialsFile string
	AllowedHosts    []string
}

// GCSStore 以 Firebase Storage 或 GCS 網址存取圖片
type GCSStore struct {
	client       *gcs.Client
	bucket       string
	allowedHosts []string
}

// NewGCSStore 創建 GCS 儲存；STORAGE_EMULATOR_HOST 由 SDK 自行讀取
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return newGCSStore(client, cfg), nil
}

func newGCSStore(client *gcs.Client, cfg GCSConfig) *GCSStore {
	hosts := cfg.AllowedHosts
	if len(hosts) == 0 {
		hosts = []string{firebaseHost, gcsHost}
	}
	return &GCSStore{client: client, bucket: cfg.Bucket, allowedHosts: hosts}
}

func (s *GCSStore) Name() string { return "gcs" }

// Owns 網址需在允許的主機上，且必須屬於設定的 bucket
func (s *GCSStore) Owns(rawURL string) bool {
	ref, err := s.ref(rawURL)
	return err == nil && ref.Key != ""
}

// Fetch 讀取物件內容
func (s *GCSStore) Fetch(ctx context.Context, rawURL string, maxBytes int64) (*Object, error) {
	ref, err := s.ref(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	r, err := s.client.Bucket(ref.Bucket).Object(ref.Key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to open GCS object %q in bucket %q: %w", ref.Key, ref.Bucket, err)
	}
	defer r.Close()

	if maxBytes > 0 && r.Attrs.Size > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, r.Attrs.Size)
	}
	data, err := readLimited(r, maxBytes)
	if err != nil {
		return nil, err
	}
	return &Object{Data: data, ContentType: r.Attrs.ContentType}, nil
}

// Delete 刪除物件
func (s *GCSStore) Delete(ctx context.Context, rawURL string) error {
	ref, err := s.ref(rawURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.client.Bucket(ref.Bucket).Object(ref.Key).Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", ref.Key, ref.Bucket, err)
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) ref(rawURL string) (ObjectRef, error) {
	ref, err := ParseGCSURL(rawURL, s.allowedHosts)
	if err != nil {
		return ObjectRef{}, err
	}
	// 未設定 bucket 時不接受任何網址，避免刪到別的 bucket
	if s.bucket == "" || ref.Bucket != s.bucket {
		return ObjectRef{}, fmt.Errorf("%w: bucket %q", ErrNotOwned, ref.Bucket)
	}
	return ref, nil
}

// ParseGCSURL 解析三種網址：
//
//	https://firebasestorage.googleapis.com/v0/b/<bucket>/o/<escaped path>?alt=media&token=...
//	https://storage.googleapis.com/<bucket>/<object>
//	gs://<bucket>/<object>
func ParseGCSURL(rawURL string, allowedHosts []string) (ObjectRef, error) {
	raw := strings.TrimSpace(rawURL)
	if strings.HasPrefix(raw, "gs://") {
		bucket, key, ok := strings.Cut(strings.TrimPrefix(raw, "gs://"), "/")
		if !ok || bucket == "" || key == "" {
			return ObjectRef{}, ErrNotOwned
		}
		return ObjectRef{Bucket: bucket, Key: key}, nil
	}

	u, ok := parseHTTPS(raw)
	if !ok || !hostAllowed(u.Host, allowedHosts) {
		return ObjectRef{}, ErrNotOwned
	}

	switch strings.ToLower(u.Host) {
	case firebaseHost:
		// 物件路徑整段被 escape，必須從 EscapedPath 取出再解碼
		rest, ok := strings.CutPrefix(u.EscapedPath(), "/v0/b/")
		if !ok {
			return ObjectRef{}, ErrNotOwned
		}
		bucket, escapedKey, ok := strings.Cut(rest, "/o/")
		if !ok || bucket == "" || escapedKey == "" {
			return ObjectRef{}, ErrNotOwned
		}
		key, err := url.PathUnescape(escapedKey)
		if err != nil {
			return ObjectRef{}, fmt.Errorf("%w: %v", ErrNotOwned, err)
		}
		return ObjectRef{Bucket: bucket, Key: key}, nil
	default:
		bucket, key, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if !ok || bucket == "" || key == "" {
			return ObjectRef{}, ErrNotOwned
		}
		return ObjectRef{Bucket: bucket, Key: key}, nil
	}
}
