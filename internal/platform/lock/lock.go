// Package lock serializes writers on a single key across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrBusy is returned when the key stays held past the retry budget.
var ErrBusy = errors.New("lock: resource busy")

// Locker acquires an exclusive lease on key. The returned release func is
// safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RedisLocker is a Locker backed by redislock.
type RedisLocker struct {
	client  *redislock.Client
	retries int
	backoff time.Duration
}

// NewRedisLocker wraps the redis client.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{
		client:  redislock.New(client),
		retries: 5,
		backoff: 100 * time.Millisecond,
	}
}

// Acquire obtains the lease, retrying with a linear backoff.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lk, err := l.client.Obtain(ctx, "agrodistri:lock:"+key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("lock: obtain %s: %w", key, err)
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		// Release uses a fresh context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = lk.Release(releaseCtx)
	}, nil
}

// NoopLocker grants every request immediately.
type NoopLocker struct{}

// Acquire implements Locker.
func (NoopLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}
