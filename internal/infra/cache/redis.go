package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"failboard/config"

	"github.com/redis/go-redis/v9"
)

// KV is the local durable store: string values under string keys. A missing
// key is reported by ok=false, never by an error.
type KV interface {
	Load(ctx context.Context, key string) (value string, ok bool, err error)
	Store(ctx context.Context, key, value string) error
}

type RedisCache struct {
	client *redis.Client
}

func New(cfg *config.Config) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: rdb}, nil
}

func NewFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Load(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Store persists without expiry; stories and bookmarks live until overwritten.
func (c *RedisCache) Store(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, key, value, 0).Err()
}

// SetWithRandomTTL adds +-10% jitter so keys written together do not expire together.
func (c *RedisCache) SetWithRandomTTL(ctx context.Context, key string, value interface{}, baseTTL time.Duration) error {
	actualTTL := baseTTL
	if baseTTL >= 10 {
		jitter := time.Duration(rand.Int63n(int64(baseTTL/5)) - int64(baseTTL/10))
		actualTTL = baseTTL + jitter
	}
	if actualTTL <= 0 {
		actualTTL = baseTTL
	}
	return c.client.Set(ctx, key, value, actualTTL).Err()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}

func (c *RedisCache) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, blacklistKey(jti), "1", ttl).Err()
}

func (c *RedisCache) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.client.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("redis error checking blacklist: %w", err)
	}
	return n > 0, nil
}

// AllowRequest is a fixed-window counter; the window starts at the first hit.
func (c *RedisCache) AllowRequest(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	const script = `
        local current = redis.call("INCR", KEYS[1])
        if tonumber(current) == 1 then
            redis.call("EXPIRE", KEYS[1], ARGV[1])
        end
        return current
    `

	secs := int(window.Seconds())
	if secs < 1 {
		secs = 1
	}
	count, err := c.client.Eval(ctx, script, []string{key}, secs).Int()
	if err != nil {
		return true, err
	}

	return count <= limit, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
