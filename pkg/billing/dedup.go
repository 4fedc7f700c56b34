package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDeduper records webhook event ids so replayed deliveries can be
// acknowledged without re-running their handlers. Dedup is an optimization
// on top of handler idempotency, not a substitute for it: callers degrade
// open when the deduper is unavailable.
//
// Seen and Mark are separate so callers can record an event only after its
// handler ran: marking up front would suppress the redelivery that recovers
// a crash mid-processing.
type EventDeduper interface {
	// Seen reports whether the event id has been marked handled.
	Seen(ctx context.Context, eventID string) (bool, error)
	// Mark records the event id as handled.
	Mark(ctx context.Context, eventID string) error
}

const dedupKeyPrefix = "billing:webhook:event:"

// RedisDeduper implements EventDeduper with a key per event id. Keys expire
// so the working set stays bounded; the gateway stops retrying deliveries
// long before the TTL lapses.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a redis-backed deduper. A non-positive ttl
// defaults to 72 hours, matching typical gateway retry windows.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if client == nil {
		panic("billing: redis client is required")
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupKeyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check event %s: %w", eventID, err)
	}
	return n > 0, nil
}

func (d *RedisDeduper) Mark(ctx context.Context, eventID string) error {
	if err := d.client.Set(ctx, dedupKeyPrefix+eventID, 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("dedup mark event %s: %w", eventID, err)
	}
	return nil
}

// MemoryDeduper is an in-process EventDeduper for tests and single-node
// development setups.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]struct{})}
}

func (d *MemoryDeduper) Seen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[eventID]
	return ok, nil
}

func (d *MemoryDeduper) Mark(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[eventID] = struct{}{}
	return nil
}
