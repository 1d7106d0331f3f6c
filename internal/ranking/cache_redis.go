package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rank:v1:"

type RedisCache struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

// NewRedisCache stores entries as JSON under rank:v1:<fingerprint>. A ttl of
// zero keeps entries until evicted by Redis.
func NewRedisCache(rdb goredis.Cmdable, ttl time.Duration) (*RedisCache, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisCache{rdb: rdb, ttl: ttl}, nil
}

func (c *RedisCache) Name() string { return "redis" }

func (c *RedisCache) Get(ctx context.Context, fp Fingerprint) (*Entry, bool, error) {
	raw, err := c.rdb.Get(ctx, redisKeyPrefix+fp.String()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return &e, true, nil
}

func (c *RedisCache) Set(ctx context.Context, fp Fingerprint, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("nil entry")
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, redisKeyPrefix+fp.String(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
