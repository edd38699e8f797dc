package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDeduper tracks processed webhook events by (processor, eventID).
// Vendors may deliver the same notification more than once and out of order;
// consumers mark an event only after its effects are applied, so a
// redelivery of a failed attempt is processed again instead of absorbed.
type EventDeduper interface {
	// Seen reports whether the event has already been marked.
	Seen(ctx context.Context, processor, eventID string) (bool, error)
	// Mark records the event so later redeliveries are absorbed.
	Mark(ctx context.Context, processor, eventID string) error
}

type redisEventDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisEventDeduper) Seen(ctx context.Context, processor, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(processor, eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *redisEventDeduper) Mark(ctx context.Context, processor, eventID string) error {
	return d.client.Set(ctx, d.key(processor, eventID), "1", d.ttl).Err()
}

func (d *redisEventDeduper) key(processor, eventID string) string {
	return d.prefix + ":" + processor + ":" + eventID
}

// MemoryDeduper is the in-process fallback when Redis is unavailable, and
// the fake store tests run against.
type MemoryDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
}

// NewMemoryDeduper creates an in-memory deduper with the given entry TTL.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	now := time.Now()
	return &MemoryDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: now.Add(ttl),
	}
}

func (d *MemoryDeduper) Seen(_ context.Context, processor, eventID string) (bool, error) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.seen[processor+":"+eventID]
	return ok && exp.After(now), nil
}

func (d *MemoryDeduper) Mark(_ context.Context, processor, eventID string) error {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seen[processor+":"+eventID] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for k, exp := range d.seen {
			if exp.Before(now) {
				delete(d.seen, k)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}
	return nil
}

// New builds a Redis-backed deduper and falls back to in-memory when Redis
// is unreachable or unconfigured.
func New(addr, pass string, db int, ttl time.Duration) (EventDeduper, error) {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	if addr == "" {
		return NewMemoryDeduper(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return NewMemoryDeduper(ttl), err
	}

	return &redisEventDeduper{
		client: client,
		prefix: "webhook:event",
		ttl:    ttl,
	}, nil
}
