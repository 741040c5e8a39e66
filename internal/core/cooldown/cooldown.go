// Package cooldown 按 key 做最小发送间隔（注册发码节流）
package cooldown

import (
	"context"
	"sync"
	"time"
)

// Limiter Allow 返回 false 表示仍在冷却期内
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Nop 不做限制（window <= 0 时使用）
type Nop struct{}

func (Nop) Allow(context.Context, string) (bool, error) { return true, nil }

// Memory 单进程内的冷却表；多实例部署请用 Redis
type Memory struct {
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	until map[string]time.Time
}

func NewMemory(window time.Duration) *Memory {
	return &Memory{window: window, now: time.Now, until: map[string]time.Time{}}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if t, ok := m.until[key]; ok && now.Before(t) {
		return false, nil
	}
	m.until[key] = now.Add(m.window)
	// 顺手清掉过期项，防止无限增长
	if len(m.until) > 1024 {
		for k, t := range m.until {
			if !now.Before(t) {
				delete(m.until, k)
			}
		}
	}
	return true, nil
}

// New window <= 0 时返回 Nop
func New(window time.Duration, rdb RedisClient) Limiter {
	switch {
	case window <= 0:
		return Nop{}
	case rdb != nil:
		return NewRedis(rdb, window)
	default:
		return NewMemory(window)
	}
}
