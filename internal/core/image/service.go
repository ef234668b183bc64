package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // 支援 GIF
	_ "image/jpeg" // 支援 JPEG
	_ "image/png"  // 支援 PNG

	_ "golang.org/x/image/webp" // 支援 WebP
)

var (
	// ErrEmpty 圖片內容為空
	ErrEmpty = errors.New("image is empty")
	// ErrTooLarge 圖片超過大小上限
	ErrTooLarge = errors.New("image exceeds maximum size")
	// ErrUnsupportedFormat 不支援的圖片格式
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Info 圖片基本資訊
type Info struct {
	Format   string
	MIMEType string
	Width    int
	Height   int
	Size     int
}

// Service 圖片檢查服務，只驗證不轉檔
type Service struct {
	maxSizeBytes int64
}

// NewService 創建新的圖片處理服務
func NewService(maxSizeBytes int64) *Service {
	return &Service{maxSizeBytes: maxSizeBytes}
}

// MaxSizeBytes 圖片大小上限
func (s *Service) MaxSizeBytes() int64 {
	return s.maxSizeBytes
}

// Validate 檢查大小與格式，只讀取圖片標頭
func (s *Service) Validate(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, ErrEmpty
	}
	if s.maxSizeBytes > 0 && int64(len(data)) > s.maxSizeBytes {
		return Info{}, fmt.Errorf("%w: %d bytes > %d bytes", ErrTooLarge, len(data), s.maxSizeBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	mime, ok := mimeTypes[format]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return Info{
		Format:   format,
		MIMEType: mime,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Size:     len(data),
	}, nil
}

var mimeTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}
