package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock serializes refresh cycles across processes via SET NX with a TTL
// so a crashed holder cannot wedge refreshes forever.
type Lock struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewLock(client *redis.Client, ttl time.Duration) *Lock {
	return &Lock{Client: client, TTL: ttl}
}

func (l *Lock) TryAcquire(ctx context.Context, key string) (bool, error) {
	ok, err := l.Client.SetNX(ctx, key, "1", l.TTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (l *Lock) Release(ctx context.Context, key string) error {
	return l.Client.Del(ctx, key).Err()
}
