package stripe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultEventTTL is how long processed events are remembered by default.
// Stripe retries a failed delivery for up to three days.
const defaultEventTTL = 72 * time.Hour

// EventStore remembers the webhook events already processed.
type EventStore interface {
	EventExists(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// MemoryEventStore is an in-memory implementation of EventStore, only valid
// for a single replica.
type MemoryEventStore struct {
	events map[string]time.Time
	mutex  sync.RWMutex
	ttl    time.Duration
}

// NewMemoryEventStore creates a new in-memory event store. Expired events are
// dropped until the context is canceled.
func NewMemoryEventStore(ctx context.Context, ttl time.Duration) *MemoryEventStore {
	if ttl == 0 {
		ttl = defaultEventTTL
	}
	store := &MemoryEventStore{
		events: make(map[string]time.Time),
		ttl:    ttl,
	}
	go store.cleanup(ctx)
	return store
}

// EventExists checks if an event has already been processed
func (m *MemoryEventStore) EventExists(_ context.Context, eventID string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	processedAt, exists := m.events[eventID]
	return exists && time.Since(processedAt) <= m.ttl, nil
}

// MarkProcessed marks an event as processed
func (m *MemoryEventStore) MarkProcessed(_ context.Context, eventID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.events[eventID] = time.Now()
	return nil
}

// cleanup removes expired events periodically
func (m *MemoryEventStore) cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mutex.Lock()
			now := time.Now()
			for eventID, timestamp := range m.events {
				if now.Sub(timestamp) > m.ttl {
					delete(m.events, eventID)
				}
			}
			m.mutex.Unlock()
		}
	}
}

// Size returns the number of stored events (for monitoring/debugging)
func (m *MemoryEventStore) Size() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.events)
}

// RedisEventStore keeps the processed events in Redis, shared by every
// replica. Keys expire on their own after the TTL.
type RedisEventStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisEventStore creates an event store over the given Redis client.
func NewRedisEventStore(client *redis.Client, prefix string, ttl time.Duration) *RedisEventStore {
	if ttl == 0 {
		ttl = defaultEventTTL
	}
	if prefix == "" {
		prefix = "stripe:event:"
	}
	return &RedisEventStore{client: client, prefix: prefix, ttl: ttl}
}

// EventExists checks if an event has already been processed
func (r *RedisEventStore) EventExists(ctx context.Context, eventID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check stripe event %s: %w", eventID, err)
	}
	return n > 0, nil
}

// MarkProcessed marks an event as processed. Marking it twice keeps the
// first timestamp.
func (r *RedisEventStore) MarkProcessed(ctx context.Context, eventID string) error {
	if err := r.client.SetNX(ctx, r.prefix+eventID, time.Now().Unix(), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark stripe event %s: %w", eventID, err)
	}
	return nil
}
