package scan

import (
	"context"
	"sort"
	"sync"

	"menu-analyzer/internal/core/menu"
)

// MemoryRepository 記憶體儲存，重啟後資料消失
type MemoryRepository struct {
	mu    sync.RWMutex
	scans map[string][]menu.MenuScan
	prefs map[string]menu.UserPreferences
}

// NewMemoryRepository 創建記憶體儲存
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		scans: make(map[string][]menu.MenuScan),
		prefs: make(map[string]menu.UserPreferences),
	}
}

func (r *MemoryRepository) SaveScan(ctx context.Context, scan *menu.MenuScan) error {
	if err := prepareScan(scan); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans[scan.UserID] = append(r.scans[scan.UserID], *scan)
	return nil
}

func (r *MemoryRepository) ListScans(ctx context.Context, userID string, limit int) ([]menu.MenuScan, error) {
	r.mu.RLock()
	src := r.scans[userID]
	out := make([]menu.MenuScan, len(src))
	copy(out, src)
	r.mu.RUnlock()

	// 新增順序即時間順序，同時間戳記時新的在前
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) GetPreferences(ctx context.Context, userID string) (menu.UserPreferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prefs[userID]
	if !ok {
		return menu.UserPreferences{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepository) SavePreferences(ctx context.Context, userID string, prefs menu.UserPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs[userID] = prefs
	return nil
}

func (r *MemoryRepository) Close() error { return nil }
