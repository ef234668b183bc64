package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config S3 相容儲存（例如 Cloudflare R2）設定
type S3Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

// S3Store 以公開網址對應到 bucket 內的物件
type S3Store struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Store 創建 S3 儲存
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, cfg), nil
}

func newS3Store(client *s3.Client, cfg S3Config) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
}

func (s *S3Store) Name() string { return "s3" }

func (s *S3Store) Owns(rawURL string) bool {
	_, err := s.key(rawURL)
	return err == nil
}

// Fetch 讀取物件內容
func (s *S3Store) Fetch(ctx context.Context, rawURL string, maxBytes int64) (*Object, error) {
	key, err := s.key(rawURL)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, s.bucket, key)
		}
		return nil, fmt.Errorf("failed to get s3 object %q in bucket %q: %w", key, s.bucket, err)
	}
	defer out.Body.Close()

	if maxBytes > 0 && out.ContentLength != nil && *out.ContentLength > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, *out.ContentLength)
	}
	data, err := readLimited(out.Body, maxBytes)
	if err != nil {
		return nil, err
	}
	return &Object{Data: data, ContentType: aws.ToString(out.ContentType)}, nil
}

// Delete 刪除物件
func (s *S3Store) Delete(ctx context.Context, rawURL string) error {
	key, err := s.key(rawURL)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete s3 object %q in bucket %q: %w", key, s.bucket, err)
	}
	return nil
}

func (s *S3Store) Close() error { return nil }

// key 從公開網址取出物件 key
func (s *S3Store) key(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if s.baseURL == "" || !strings.HasPrefix(raw, s.baseURL+"/") {
		return "", ErrNotOwned
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotOwned, err)
	}
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotOwned, err)
	}
	key := strings.TrimPrefix(strings.TrimPrefix(u.Path, base.Path), "/")
	if key == "" {
		return "", ErrNotOwned
	}
	return key, nil
}
