package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Guard marks a cart as having a submission in flight.
type Guard interface {
	// Acquire returns false when another owner holds key.
	Acquire(ctx context.Context, key, owner string) (bool, error)
	// Release frees key if owner still holds it.
	Release(ctx context.Context, key, owner string) error
}

// LocalGuard guards submissions inside one process.
type LocalGuard struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewLocalGuard() *LocalGuard {
	return &LocalGuard{owners: make(map[string]string)}
}

func (g *LocalGuard) Acquire(_ context.Context, key, owner string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.owners[key]; busy {
		return false, nil
	}
	g.owners[key] = owner
	return true, nil
}

func (g *LocalGuard) Release(_ context.Context, key, owner string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.owners[key] == owner {
		delete(g.owners, key)
	}
	return nil
}

// RedisGuard shares the guard between storefront instances. The lock expires after TTL
// so a crashed instance cannot block a cart forever.
type RedisGuard struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisGuard{Client: client, TTL: ttl}
}

func lockKey(key string) string {
	return "checkout_lock:" + key
}

func (g *RedisGuard) Acquire(ctx context.Context, key, owner string) (bool, error) {
	return g.Client.SetNX(ctx, lockKey(key), owner, g.TTL).Result()
}

func (g *RedisGuard) Release(ctx context.Context, key, owner string) error {
	val, err := g.Client.Get(ctx, lockKey(key)).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == owner {
		return g.Client.Del(ctx, lockKey(key)).Err()
	}
	return nil
}
