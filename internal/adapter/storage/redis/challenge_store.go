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

// ChallengeStore holds pending OTP challenges in Redis. Entries carry a
// TTL so abandoned challenges expire without a sweeper.
type ChallengeStore struct {
	client       *goredis.Client
	prefix       string
	activePrefix string
}

// NewChallengeStore creates a new Redis-backed challenge store.
func NewChallengeStore(client *goredis.Client) *ChallengeStore {
	return &ChallengeStore{
		client:       client,
		prefix:       "otp:challenge:",
		activePrefix: "otp:active:",
	}
}

// Put stores a challenge under its key with the given TTL.
func (s *ChallengeStore) Put(ctx context.Context, challenge *domain.OTPChallenge, ttl time.Duration) error {
	data, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("marshaling challenge: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+challenge.Key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis challenge put: %w", err)
	}
	return nil
}

// Get retrieves a challenge by key. Returns nil, nil when the key is
// absent or already expired.
func (s *ChallengeStore) Get(ctx context.Context, key string) (*domain.OTPChallenge, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis challenge get: %w", err)
	}

	var challenge domain.OTPChallenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil, fmt.Errorf("unmarshaling challenge: %w", err)
	}
	return &challenge, nil
}

// Delete removes a challenge.
func (s *ChallengeStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis challenge delete: %w", err)
	}
	return nil
}

// ReplaceActive records key as the single active challenge for
// (subject, purpose) and returns the key it displaced, empty if none.
func (s *ChallengeStore) ReplaceActive(ctx context.Context, subjectID uuid.UUID, purpose domain.OTPPurpose, key string, ttl time.Duration) (string, error) {
	activeKey := fmt.Sprintf("%s%s:%s", s.activePrefix, subjectID, purpose)
	prev, err := s.client.SetArgs(ctx, activeKey, key, goredis.SetArgs{
		TTL: ttl,
		Get: true,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// No previous active challenge
			return "", nil
		}
		return "", fmt.Errorf("redis challenge replace active: %w", err)
	}
	return prev, nil
}
