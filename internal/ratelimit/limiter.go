// Package ratelimit は送信元単位の固定ウィンドウ方式レート制限を提供します。
package ratelimit

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Counter はウィンドウ単位のカウント加算を抽象化します。
// 単一プロセス運用ではメモリ実装、水平スケール時はRedis実装を使います。
type Counter interface {
	// Incr はキーの現在ウィンドウのカウントを1増やし、増加後の値を返します。
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter は1つの制限ポリシー（上限とウィンドウ幅）を表します。
type Limiter struct {
	counter Counter
	limit   int64
	window  time.Duration
	name    string
}

// New は Limiter を作成します。name はカウンターキーの名前空間です。
func New(counter Counter, limit int, window time.Duration, name string) *Limiter {
	return &Limiter{
		counter: counter,
		limit:   int64(limit),
		window:  window,
		name:    name,
	}
}

// Middleware は送信元IPをキーに制限を適用するミドルウェアを返します。
// 上限超過時は429を返して処理を打ち切るため、後続ハンドラーの副作用は
// 一切発生しません。カウンター障害時は制限せずに通します（公開フォームの
// 可用性を優先するフェイルオープン）。
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := l.name + ":" + c.ClientIP()
		count, err := l.counter.Incr(c.Request.Context(), key, l.window)
		if err != nil {
			log.Printf("rate limit counter error (%s): %v", l.name, err)
			c.Next()
			return
		}
		if count > l.limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "Too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}

type windowEntry struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter は単一プロセス内で完結するカウンターです。
// カウントは再起動で消えますが、それで問題ない前提の用途です。
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	now     func() time.Time
}

// NewMemoryCounter は MemoryCounter を作成します。
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

// Incr は Counter を実装します。
func (m *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.entries[key]
	if !ok || now.After(entry.resetAt) {
		entry = &windowEntry{resetAt: now.Add(window)}
		m.entries[key] = entry
	}
	entry.count++

	// 期限切れエントリが溜まりすぎたら掃除する
	if len(m.entries) > 4096 {
		for k, e := range m.entries {
			if now.After(e.resetAt) {
				delete(m.entries, k)
			}
		}
	}

	return entry.count, nil
}
