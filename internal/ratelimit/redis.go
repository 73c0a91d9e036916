package ratelimit

import (
	"context"
	"fmt"
	"time"

	radix "github.com/mediocregopher/radix/v3"
)

const keyFormat = "ratelimit:%s:%d" // scope:client, window index

// RedisLimiter is a fixed-window counter shared by every API instance.
type RedisLimiter struct {
	client radix.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter allows at most limit calls per key in each window.
func NewRedisLimiter(client radix.Client, limit int, window time.Duration) *RedisLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &RedisLimiter{client: client, limit: limit, window: window, now: time.Now}
}

// Allow counts the call against the current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowIdx := l.now().UnixMilli() / l.window.Milliseconds()
	redisKey := fmt.Sprintf(keyFormat, key, windowIdx)

	var count int
	err := l.client.Do(radix.Pipeline(
		radix.FlatCmd(&count, "INCR", redisKey),
		radix.FlatCmd(nil, "EXPIRE", redisKey, int(l.window.Seconds())),
	))
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", redisKey, err)
	}
	return count <= l.limit, nil
}
