package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/muzz-connect/internal/config"
)

// LikeCountTTL is how long a cached liked-you count lives without access.
const LikeCountTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	return c.Client.Del(ctx, keys...).Err()
}

// KeyForLikeCount generates Redis key for a user's liked-you count.
func (c *RedisCache) KeyForLikeCount(userID string) string {
	return "likes:count:" + userID
}

// KeyForEntitlement generates Redis key for a user's cached premium flag.
func (c *RedisCache) KeyForEntitlement(userID string) string {
	return "entitlement:" + userID
}

// KeyForViewerCount generates Redis key for a stream's last recounted viewer total.
func (c *RedisCache) KeyForViewerCount(streamID string) string {
	return "stream:viewers:" + streamID
}

// GetLikeCount returns the cached count; found is false on a cache miss.
// A hit refreshes the TTL since the user is active.
func (c *RedisCache) GetLikeCount(ctx context.Context, userID string) (count int64, found bool, err error) {
	key := c.KeyForLikeCount(userID)
	n, found, err := c.getInt(ctx, key)
	if err != nil || !found {
		return 0, found, err
	}
	_ = c.Client.Expire(ctx, key, LikeCountTTL).Err()
	return n, true, nil
}

func (c *RedisCache) SetLikeCount(ctx context.Context, userID string, count int64) error {
	return c.Client.Set(ctx, c.KeyForLikeCount(userID), count, LikeCountTTL).Err()
}

// InvalidateLikeCount drops the cached count so the next read goes to the DB.
func (c *RedisCache) InvalidateLikeCount(ctx context.Context, userID string) error {
	return c.Del(ctx, c.KeyForLikeCount(userID))
}

// GetEntitlement returns the cached premium flag; found is false on a cache miss.
func (c *RedisCache) GetEntitlement(ctx context.Context, userID string) (premium bool, found bool, err error) {
	n, found, err := c.getInt(ctx, c.KeyForEntitlement(userID))
	return n == 1, found, err
}

func (c *RedisCache) SetEntitlement(ctx context.Context, userID string, premium bool, ttl time.Duration) error {
	v := 0
	if premium {
		v = 1
	}
	return c.Client.Set(ctx, c.KeyForEntitlement(userID), v, ttl).Err()
}

// GetViewerCount returns the last recounted viewer total for a stream.
func (c *RedisCache) GetViewerCount(ctx context.Context, streamID string) (int64, bool, error) {
	return c.getInt(ctx, c.KeyForViewerCount(streamID))
}

func (c *RedisCache) SetViewerCount(ctx context.Context, streamID string, count int64) error {
	return c.Client.Set(ctx, c.KeyForViewerCount(streamID), count, 0).Err()
}

func (c *RedisCache) getInt(ctx context.Context, key string) (int64, bool, error) {
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt cache value at %s: %w", key, err)
	}
	return n, true, nil
}
