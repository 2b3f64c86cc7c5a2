package store

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper answers whether a provider message id has been seen inside the
// dedup window. Seen marks and checks atomically: the first caller for an
// id gets false, every later caller inside the window gets true.
type Deduper interface {
	Seen(ctx context.Context, messageID string) bool
}

// RedisDeduper tracks message ids with SETNX and a TTL, surviving restarts
// and shared across instances.
type RedisDeduper struct {
	client *redis.Client
	window time.Duration
	logger *zap.Logger
}

// NewRedisDeduper wires a deduper to a Redis client.
func NewRedisDeduper(client *redis.Client, window time.Duration, logger *zap.Logger) *RedisDeduper {
	return &RedisDeduper{client: client, window: window, logger: logger}
}

func (d *RedisDeduper) Seen(ctx context.Context, messageID string) bool {
	if messageID == "" {
		return false
	}
	set, err := d.client.SetNX(ctx, "dedup:mid:"+messageID, 1, d.window).Result()
	if err != nil {
		// Fail open: an unreachable Redis must not drop messages.
		d.logger.Warn("dedup check failed", zap.Error(err))
		return false
	}
	return !set
}

// MemoryDeduper is the single-instance fallback used when Redis is not
// configured.
type MemoryDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

// NewMemoryDeduper builds an in-process deduper.
func NewMemoryDeduper(window time.Duration) *MemoryDeduper {
	return &MemoryDeduper{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

func (d *MemoryDeduper) Seen(_ context.Context, messageID string) bool {
	if messageID == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, at := range d.seen {
		if now.Sub(at) > d.window {
			delete(d.seen, id)
		}
	}

	if at, ok := d.seen[messageID]; ok && now.Sub(at) <= d.window {
		return true
	}
	d.seen[messageID] = now
	return false
}
