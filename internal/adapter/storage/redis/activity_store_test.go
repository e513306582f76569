package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/ruban1613/ibet/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityStore_Bump(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := redis.NewActivityStore(client)
	ctx := context.Background()
	subjectID := uuid.New()

	t.Run("counts within the window", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			count, err := store.Bump(ctx, subjectID, "withdrawal_failed", 15*time.Minute)
			require.NoError(t, err)
			assert.Equal(t, i, count)
		}
	})

	t.Run("activity types are independent", func(t *testing.T) {
		count, err := store.Bump(ctx, subjectID, "otp_failed", 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("subjects are independent", func(t *testing.T) {
		count, err := store.Bump(ctx, uuid.New(), "withdrawal_failed", 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("window starts at first bump and then expires", func(t *testing.T) {
		otherID := uuid.New()
		_, err := store.Bump(ctx, otherID, "login_failed", 15*time.Minute)
		require.NoError(t, err)

		mr.FastForward(16 * time.Minute)

		count, err := store.Bump(ctx, otherID, "login_failed", 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
