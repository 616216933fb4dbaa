package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dataask/dataask/core/domain/interfaces"
)

var (
	_ interfaces.RunGuard = (*MemoryGuard)(nil)
	_ interfaces.RunGuard = (*RedisGuard)(nil)
)

// MemoryGuard is a process-local RunGuard.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryGuard creates an empty MemoryGuard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]struct{})}
}

// TryAcquire claims id if nobody holds it.
func (g *MemoryGuard) TryAcquire(_ context.Context, id string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[id]; busy {
		return nil, false, nil
	}
	g.held[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, id)
			g.mu.Unlock()
		})
	}, true, nil
}

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard is a RunGuard shared by every instance using the same redis.
// Locks expire after ttl so a crashed holder cannot block an id forever.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisGuard creates a RedisGuard. ttl should exceed the run timeout.
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl, prefix: "dataask:run-lock:"}
}

// TryAcquire sets the lock key with NX and a millisecond expiry.
func (g *RedisGuard) TryAcquire(ctx context.Context, id string) (func(), bool, error) {
	key := g.prefix + id
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire run lock %s: %w", id, err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, g.client, []string{key}, token).Err()
		})
	}, true, nil
}
