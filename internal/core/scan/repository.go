package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"menu-analyzer/internal/core/menu"
	"menu-analyzer/internal/infrastructure/config"
	"menu-analyzer/internal/pkg/common"
)

// ErrNotFound 查無資料
var ErrNotFound = errors.New("not found")

// DefaultListLimit 列表預設筆數
const DefaultListLimit = 20

// MaxListLimit 列表最大筆數
const MaxListLimit = 100

// Repository 掃描紀錄與使用者偏好的儲存，掃描紀錄只會新增
type Repository interface {
	SaveScan(ctx context.Context, scan *menu.MenuScan) error
	// ListScans 依建立時間由新到舊
	ListScans(ctx context.Context, userID string, limit int) ([]menu.MenuScan, error)
	GetPreferences(ctx context.Context, userID string) (menu.UserPreferences, error)
	SavePreferences(ctx context.Context, userID string, prefs menu.UserPreferences) error
	Close() error
}

// New 依設定建立儲存
func New(ctx context.Context, cfg config.DatabaseConfig) (Repository, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgresRepository(ctx, cfg)
	case "sqlite":
		return NewSQLiteRepository(cfg.DSN)
	case "memory", "":
		return NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// prepareScan 補上 ID 與時間
func prepareScan(scan *menu.MenuScan) error {
	if scan.UserID == "" {
		return errors.New("scan user id is required")
	}
	if scan.ID == "" {
		scan.ID = common.GenerateUUID()
	}
	now := time.Now().UTC()
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = now
	}
	scan.UpdatedAt = now
	if scan.Dishes == nil {
		scan.Dishes = []menu.ScoredDish{}
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
