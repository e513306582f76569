package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/ruban1613/ibet/internal/adapter/storage/redis"
	"github.com/ruban1613/ibet/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChallenge(key string) *domain.OTPChallenge {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.OTPChallenge{
		Key:         key,
		SubjectID:   uuid.New(),
		Purpose:     domain.OTPPurposeWithdrawal,
		CodeHash:    "a1b2c3",
		MaxAttempts: 3,
		CreatedAt:   now,
		ExpiresAt:   now.Add(10 * time.Minute),
	}
}

func TestChallengeStore_PutGetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := redis.NewChallengeStore(client)
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		c := newTestChallenge("chal-1")
		require.NoError(t, store.Put(ctx, c, 10*time.Minute))

		got, err := store.Get(ctx, "chal-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, c.Key, got.Key)
		assert.Equal(t, c.SubjectID, got.SubjectID)
		assert.Equal(t, c.Purpose, got.Purpose)
		assert.Equal(t, c.CodeHash, got.CodeHash)
		assert.Equal(t, c.MaxAttempts, got.MaxAttempts)
		assert.True(t, c.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("absent key returns nil, nil", func(t *testing.T) {
		got, err := store.Get(ctx, "never-stored")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("entry expires with TTL", func(t *testing.T) {
		c := newTestChallenge("chal-ttl")
		require.NoError(t, store.Put(ctx, c, time.Minute))

		mr.FastForward(61 * time.Second)

		got, err := store.Get(ctx, "chal-ttl")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete removes the entry", func(t *testing.T) {
		c := newTestChallenge("chal-del")
		require.NoError(t, store.Put(ctx, c, time.Minute))
		require.NoError(t, store.Delete(ctx, "chal-del"))

		got, err := store.Get(ctx, "chal-del")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete of missing key is a no-op", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "never-stored"))
	})
}

func TestChallengeStore_ReplaceActive(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := redis.NewChallengeStore(client)
	ctx := context.Background()
	subjectID := uuid.New()

	prev, err := store.ReplaceActive(ctx, subjectID, domain.OTPPurposeWithdrawal, "chal-a", 10*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, prev)

	prev, err = store.ReplaceActive(ctx, subjectID, domain.OTPPurposeWithdrawal, "chal-b", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "chal-a", prev)

	// A different purpose tracks its own active challenge.
	prev, err = store.ReplaceActive(ctx, subjectID, domain.OTPPurposeTransfer, "chal-c", 10*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, prev)
}
