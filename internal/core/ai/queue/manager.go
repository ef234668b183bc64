package queue

import (
	"errors"
	"sync/atomic"
)

// ErrFull 同時進行中的上游請求已達上限
var ErrFull = errors.New("too many in-flight AI requests")

// Status 限流狀態
type Status struct {
	InFlight       int   `json:"in_flight"`
	MaxInFlight    int   `json:"max_in_flight"`
	ProcessedCount int64 `json:"processed_count"`
	RejectedCount  int64 `json:"rejected_count"`
}

// Manager 控制同時送往上游的請求數量，滿了就立即拒絕而不是排隊
type Manager struct {
	slots     chan struct{}
	processed int64
	rejected  int64
}

// NewManager 創建限流器，limit 小於 1 時視為 1
func NewManager(limit int) *Manager {
	if limit < 1 {
		limit = 1
	}
	return &Manager{slots: make(chan struct{}, limit)}
}

// Acquire 取得一個名額，回傳的 release 必須呼叫一次
func (m *Manager) Acquire() (release func(), err error) {
	select {
	case m.slots <- struct{}{}:
	default:
		atomic.AddInt64(&m.rejected, 1)
		return nil, ErrFull
	}

	var once int32
	return func() {
		if atomic.CompareAndSwapInt32(&once, 0, 1) {
			<-m.slots
			atomic.AddInt64(&m.processed, 1)
		}
	}, nil
}

// GetQueueStatus 獲取限流狀態
func (m *Manager) GetQueueStatus() Status {
	return Status{
		InFlight:       len(m.slots),
		MaxInFlight:    cap(m.slots),
		ProcessedCount: atomic.LoadInt64(&m.processed),
		RejectedCount:  atomic.LoadInt64(&m.rejected),
	}
}
