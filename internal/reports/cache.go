package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const generationKey = "agrodistri:reports:gen"

// Cache keeps serialized reports in Redis. Every key embeds the current
// generation, so Bump retires all of them without a SCAN. A nil client
// turns every operation into a miss.
type Cache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewCache(client redis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{rdb: client, ttl: ttl}
}

func (c *Cache) enabled() bool { return c != nil && c.rdb != nil }

// Key returns the key for one report kind and parameter token under the
// current generation. A missing generation counts as zero.
func (c *Cache) Key(ctx context.Context, kind Kind, token string) (string, error) {
	if !c.enabled() {
		return "", nil
	}
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("reports: read generation: %w", err)
	}
	return fmt.Sprintf("agrodistri:reports:%s:%s:g%d", kind, token, gen), nil
}

// Get decodes the entry at key into dest and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("reports: cache get: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("reports: cache decode %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) Put(ctx context.Context, key string, value any) error {
	if !c.enabled() || key == "" {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("reports: cache encode: %w", err)
	}
	return c.rdb.Set(ctx, key, raw, c.ttl).Err()
}

// Bump starts a new generation. Old entries expire through their TTL.
func (c *Cache) Bump(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Incr(ctx, generationKey).Err()
}
