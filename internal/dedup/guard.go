// Package dedup provides short-lived idempotency keys that serialise
// create-if-absent decisions across concurrent webhook deliveries.
package dedup

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danielolaszy/codefair/internal/id"
	"github.com/danielolaszy/codefair/internal/logging"
)

// Guard grants a key to at most one caller until the key expires or the
// caller releases it.
type Guard interface {
	// Acquire reports whether the caller obtained key.
	Acquire(ctx context.Context, key string) (bool, error)
	// Release gives up a key this guard granted. Keys held by others are
	// left alone.
	Release(ctx context.Context, key string) error
}

// Key builds the guard key for a repository and a kind or path.
func Key(repository, name string) string {
	return fmt.Sprintf("codefair:%s:%s", repository, name)
}

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// releaseScript deletes KEYS[1] only while it still stores ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard uses SET NX with a TTL so that replicas share one key space.
type RedisGuard struct {
	client redisClient
	ttl    time.Duration

	mu      sync.Mutex
	holders map[string]string
}

// NewRedisGuard returns a guard backed by client.
func NewRedisGuard(client redis.Cmdable, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl, holders: make(map[string]string)}
}

// Acquire implements Guard. The stored value identifies the holder.
func (g *RedisGuard) Acquire(ctx context.Context, key string) (bool, error) {
	holder := strconv.FormatInt(id.New(), 10)

	ok, err := g.client.SetNX(ctx, key, holder, g.ttl).Result()
	if err != nil {
		logging.ErrorContext(ctx, "failed to acquire dedup key", "key", key, "error", err)
		return false, fmt.Errorf("failed to acquire %s: %w", key, err)
	}

	logging.DebugContext(ctx, "dedup key", "key", key, "acquired", ok, "holder", holder)
	if ok {
		g.mu.Lock()
		g.holders[key] = holder
		g.mu.Unlock()
	}
	return ok, nil
}

// Release implements Guard.
func (g *RedisGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	holder, ok := g.holders[key]
	delete(g.holders, key)
	g.mu.Unlock()
	if !ok {
		return nil
	}

	n, err := releaseScript.Run(ctx, g.client, []string{key}, holder).Int()
	if err != nil {
		logging.ErrorContext(ctx, "failed to release dedup key", "key", key, "error", err)
		return fmt.Errorf("failed to release %s: %w", key, err)
	}
	logging.DebugContext(ctx, "dedup key released", "key", key, "deleted", n == 1)
	return nil
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	expires map[string]time.Time
}

// NewMemoryGuard returns an in-process guard.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{
		ttl:     ttl,
		now:     time.Now,
		expires: make(map[string]time.Time),
	}
}

// Acquire implements Guard.
func (g *MemoryGuard) Acquire(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, exp := range g.expires {
		if !now.Before(exp) {
			delete(g.expires, k)
		}
	}

	if _, held := g.expires[key]; held {
		return false, nil
	}
	g.expires[key] = now.Add(g.ttl)
	return true, nil
}

// Release implements Guard.
func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.expires, key)
	return nil
}

// Nop grants every key. It is used where no guard is configured.
type Nop struct{}

// Acquire implements Guard.
func (Nop) Acquire(context.Context, string) (bool, error) {
	return true, nil
}

// Release implements Guard.
func (Nop) Release(context.Context, string) error {
	return nil
}
