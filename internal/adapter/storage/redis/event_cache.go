package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ruban1613/ibet/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// maxCachedEvents caps a subject's hot-tier list; the durable tier in
// postgres keeps the full history.
const maxCachedEvents = 100

// EventCache is the short-lived hot tier of the audit trail: a
// per-subject list of recent security events. The durable tier lives in
// postgres; this one serves the "recent events" queries without a
// database round trip.
type EventCache struct {
	client *goredis.Client
	prefix string
}

// NewEventCache creates a new Redis-backed security event cache.
func NewEventCache(client *goredis.Client) *EventCache {
	return &EventCache{
		client: client,
		prefix: "security:events:",
	}
}

// Append pushes an event onto the subject's list, trims it to the cap,
// and refreshes the TTL.
func (c *EventCache) Append(ctx context.Context, event *domain.SecurityEvent, ttl time.Duration) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling security event: %w", err)
	}

	key := c.prefix + event.SubjectID.String()
	if err := c.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("redis event append: %w", err)
	}
	// Keep only the newest entries so a chatty subject cannot grow the
	// list unbounded within the TTL.
	c.client.LTrim(ctx, key, -maxCachedEvents, -1)
	// Refresh on every append so the list lives ttl past the last event.
	c.client.Expire(ctx, key, ttl)
	return nil
}

// Recent returns up to limit most recent events for the subject, newest
// first.
func (c *EventCache) Recent(ctx context.Context, subjectID uuid.UUID, limit int) ([]domain.SecurityEvent, error) {
	key := c.prefix + subjectID.String()
	raw, err := c.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis event range: %w", err)
	}

	events := make([]domain.SecurityEvent, 0, len(raw))
	// LRange returns oldest first; walk backwards for newest first.
	for i := len(raw) - 1; i >= 0; i-- {
		var ev domain.SecurityEvent
		if err := json.Unmarshal([]byte(raw[i]), &ev); err != nil {
			return nil, fmt.Errorf("unmarshaling security event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}
