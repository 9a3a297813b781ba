package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatusCache keeps the projected status JSON per user so the device polling
// loop does not hit the database every few seconds. A nil *StatusCache is
// valid and means caching is disabled.
type StatusCache struct{ rdb *redis.Client }

func New(rdb *redis.Client) *StatusCache {
	if rdb == nil {
		return nil
	}
	return &StatusCache{rdb: rdb}
}

func key(userID string) string { return "jemuran:status:" + userID }

func (c *StatusCache) Get(ctx context.Context, userID string) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	b, err := c.rdb.Get(ctx, key(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return b, err
}

func (c *StatusCache) Set(ctx context.Context, userID string, statusJSON []byte) error {
	if c == nil {
		return nil
	}
	return c.rdb.Set(ctx, key(userID), statusJSON, 30*time.Second).Err()
}

func (c *StatusCache) Invalidate(ctx context.Context, userID string) error {
	if c == nil {
		return nil
	}
	return c.rdb.Del(ctx, key(userID)).Err()
}
