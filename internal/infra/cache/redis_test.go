package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestKV(t *testing.T) {
	rc, _ := newTestCache(t)
	for name, kv := range map[string]KV{"redis": rc, "memory": NewMemory()} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, ok, err := kv.Load(ctx, "stories"); err != nil || ok {
				t.Fatalf("want missing key, got ok=%v err=%v", ok, err)
			}
			if err := kv.Store(ctx, "stories", "[]"); err != nil {
				t.Fatal(err)
			}
			v, ok, err := kv.Load(ctx, "stories")
			if err != nil || !ok || v != "[]" {
				t.Errorf("want [] stored, got %q ok=%v err=%v", v, ok, err)
			}
		})
	}
}

func TestRedisCache_Blacklist(t *testing.T) {
	rc, mr := newTestCache(t)
	ctx := context.Background()

	if err := rc.BlacklistToken(ctx, "jti-1", time.Minute); err != nil {
		t.Fatal(err)
	}
	black, err := rc.IsBlacklisted(ctx, "jti-1")
	if err != nil || !black {
		t.Errorf("want blacklisted, got %v err=%v", black, err)
	}

	mr.FastForward(2 * time.Minute)
	black, _ = rc.IsBlacklisted(ctx, "jti-1")
	if black {
		t.Error("want blacklist entry expired")
	}

	if err := rc.BlacklistToken(ctx, "jti-2", 0); err != nil {
		t.Fatal(err)
	}
	if black, _ := rc.IsBlacklisted(ctx, "jti-2"); black {
		t.Error("want expired token not stored")
	}
}

func TestRedisCache_SetWithRandomTTL(t *testing.T) {
	rc, mr := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if err := rc.SetWithRandomTTL(ctx, "leaderboard", "[]", 10*time.Minute); err != nil {
			t.Fatal(err)
		}
		ttl := mr.TTL("leaderboard")
		if ttl < 9*time.Minute || ttl > 11*time.Minute {
			t.Fatalf("want ttl within 10%% of 10m, got %v", ttl)
		}
	}
	v, ok, err := rc.Load(ctx, "leaderboard")
	if err != nil || !ok || v != "[]" {
		t.Errorf("want cached value, got %q ok=%v err=%v", v, ok, err)
	}

	if err := rc.Del(ctx, "leaderboard"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := rc.Load(ctx, "leaderboard"); ok {
		t.Error("want key deleted")
	}
}

func TestRedisCache_AllowRequest(t *testing.T) {
	rc, mr := newTestCache(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ok, err := rc.AllowRequest(ctx, "rate:u1:post", 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("request %d: want allowed, got %v err=%v", i, ok, err)
		}
	}
	if ok, _ := rc.AllowRequest(ctx, "rate:u1:post", 3, time.Minute); ok {
		t.Error("want 4th request rejected")
	}

	mr.FastForward(time.Minute + time.Second)
	if ok, _ := rc.AllowRequest(ctx, "rate:u1:post", 3, time.Minute); !ok {
		t.Error("want new window to allow")
	}
}
