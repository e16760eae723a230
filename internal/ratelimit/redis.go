package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const counterKeyPrefix = "ratelimit:"

// RedisCounter は複数プロセスでカウントを共有するためのカウンターです。
type RedisCounter struct {
	rdb *redis.Client
}

// NewRedisCounter は RedisCounter を作成します。
func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

// Incr は Counter を実装します。最初の加算時のみウィンドウ幅のTTLを
// 設定し、キーの失効でウィンドウを区切ります。
func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, counterKeyPrefix+key)
	pipe.ExpireNX(ctx, counterKeyPrefix+key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
