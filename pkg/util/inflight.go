package util

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InFlightLock 基于 SETNX 的互斥标记，同一个 key 同时只能有一个持有者
type InFlightLock struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewInFlightLock(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *InFlightLock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InFlightLock{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire tries to take the lock for key.
// returns ok=false if someone else holds it; release must be called when ok.
func (l *InFlightLock) Acquire(ctx context.Context, key string) (release func(), ok bool) {
	ok, err := l.rdb.SetNX(ctx, key, 1, l.ttl).Result()
	if err != nil {
		// Redis 挂了不阻止处理
		l.logger.Warn("Redis in-flight lock failed, allowing processing",
			zap.String("key", key),
			zap.Error(err),
		)
		return func() {}, true
	}

	if !ok {
		l.logger.Info("Rejected concurrent request", zap.String("key", key))
		return nil, false
	}

	return func() {
		// 请求 ctx 可能已取消，释放用独立 ctx
		delCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.rdb.Del(delCtx, key).Err(); err != nil {
			l.logger.Warn("Failed to release in-flight lock", zap.String("key", key), zap.Error(err))
		}
	}, true
}
