package activity

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window claims a key for a period. Acquire reports false when the key is
// already held by an earlier caller whose claim has not expired. Release
// drops a claim that did not end in a recorded start.
type Window interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// localWindow is the per-process debounce map. Expired keys are dropped
// lazily, at most once per ttl.
type localWindow struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	lastPrune time.Time
	now       func() time.Time
}

func newLocalWindow(now func() time.Time) *localWindow {
	return &localWindow{seen: make(map[string]time.Time), now: now}
}

func (w *localWindow) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if now.Sub(w.lastPrune) >= ttl {
		for k, at := range w.seen {
			if now.Sub(at) >= ttl {
				delete(w.seen, k)
			}
		}
		w.lastPrune = now
	}

	if at, ok := w.seen[key]; ok && now.Sub(at) < ttl {
		return false, nil
	}
	w.seen[key] = now
	return true, nil
}

func (w *localWindow) release(key string) {
	w.mu.Lock()
	delete(w.seen, key)
	w.mu.Unlock()
}

func (w *localWindow) size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

const redisWindowPrefix = "mediavault:playback:"

// RedisWindow shares the debounce window between instances with SET NX PX.
type RedisWindow struct {
	client *redis.Client
}

func NewRedisWindow(client *redis.Client) *RedisWindow {
	return &RedisWindow{client: client}
}

func (w *RedisWindow) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return w.client.SetNX(ctx, redisWindowPrefix+key, 1, ttl).Result()
}

func (w *RedisWindow) Release(ctx context.Context, key string) error {
	return w.client.Del(ctx, redisWindowPrefix+key).Err()
}

func (w *RedisWindow) Ping(ctx context.Context) error {
	return w.client.Ping(ctx).Err()
}
