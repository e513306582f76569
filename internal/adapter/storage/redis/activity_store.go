package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ActivityStore counts recent activity occurrences for anomaly
// detection. Unlike the rate limit store, the window is sliding from
// the first occurrence: the TTL starts when the counter is created and
// the counter vanishes when it elapses.
type ActivityStore struct {
	client *goredis.Client
	prefix string
}

// NewActivityStore creates a new Redis-backed activity store.
func NewActivityStore(client *goredis.Client) *ActivityStore {
	return &ActivityStore{
		client: client,
		prefix: "suspicious:",
	}
}

// Bump increments the counter for (subject, activityType) and returns
// the new count. The first bump starts the TTL window.
func (s *ActivityStore) Bump(ctx context.Context, subjectID uuid.UUID, activityType string, window time.Duration) (int64, error) {
	key := fmt.Sprintf("%s%s:%s", s.prefix, subjectID, activityType)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis activity incr: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count, nil
}
