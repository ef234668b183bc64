package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"menu-analyzer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Limiter 依 key 判斷是否允許請求，不允許時回傳建議的等待時間
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// RateLimiter 單一 key 的令牌桶
type RateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	lastTime time.Time
}

// NewRateLimiter 創建新的限流器
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:   float64(requests),
		capacity: float64(requests),
		rate:     float64(requests) / window.Seconds(),
		lastTime: time.Now(),
	}
}

// Allow 檢查是否允許請求
func (rl *RateLimiter) Allow() (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.tokens = minFloat(rl.capacity, rl.tokens+now.Sub(rl.lastTime).Seconds()*rl.rate)
	rl.lastTime = now

	if rl.tokens >= 1 {
		rl.tokens--
		return true, 0
	}
	wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
	return false, wait
}

// idle 距離上次請求的時間
func (rl *RateLimiter) idle(now time.Time) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return now.Sub(rl.lastTime)
}

// MemoryLimiter 單機版，每個 key 一個令牌桶。
// 閒置超過一個視窗的桶已經補滿，直接移除與保留等價。
type MemoryLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*RateLimiter
	requests  int
	window    time.Duration
	lastSweep time.Time
}

// NewMemoryLimiter 創建單機限流器
func NewMemoryLimiter(requests int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		buckets:   make(map[string]*RateLimiter),
		requests:  requests,
		window:    window,
		lastSweep: time.Now(),
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	m.mu.Lock()
	if now := time.Now(); now.Sub(m.lastSweep) >= m.window {
		m.sweep(now)
	}
	rl, ok := m.buckets[key]
	if !ok {
		rl = NewRateLimiter(m.requests, m.window)
		m.buckets[key] = rl
	}
	m.mu.Unlock()

	allowed, wait := rl.Allow()
	return allowed, wait, nil
}

// sweep 移除閒置的桶，呼叫時需持有 m.mu
func (m *MemoryLimiter) sweep(now time.Time) {
	for key, rl := range m.buckets {
		if rl.idle(now) >= m.window {
			delete(m.buckets, key)
		}
	}
	m.lastSweep = now
}

func (m *MemoryLimiter) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// RedisLimiter 多實例共用的固定視窗計數
type RedisLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
	prefix   string
}

// NewRedisLimiter 創建 Redis 限流器
func NewRedisLimiter(client *redis.Client, requests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:   client,
		requests: requests,
		window:   window,
		prefix:   "menu-analyzer:ratelimit:",
	}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	slot := time.Now().UnixNano() / int64(r.window)
	redisKey := r.prefix + key + ":" + strconv.FormatInt(slot, 10)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, fmt.Errorf("failed to update rate limit counter: %w", err)
	}

	if incr.Val() > int64(r.requests) {
		next := time.Unix(0, (slot+1)*int64(r.window))
		return false, time.Until(next), nil
	}
	return true, 0, nil
}

// RateLimit 限流中間件；key 為登入使用者或來源 IP
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if uid := UserID(c); uid != "" {
			key = "user:" + uid
		}

		allowed, wait, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// 限流後端故障時放行
			common.LogWarn("Rate limiter unavailable", zap.Error(err))
		}
		if !allowed {
			common.LogInfo("Rate limit exceeded",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
			)
			seconds := int(wait.Seconds() + 0.999)
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			common.WriteError(c, common.ErrTooManyRequests, false)
			return
		}

		c.Next()
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
