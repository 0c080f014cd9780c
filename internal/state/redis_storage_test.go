package state

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func setupTestStorage(t *testing.T) Storage {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStorage(client, testLogger())
}

func TestRedisStorage_RoundTrip(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	session := &Session{
		UserID:       42,
		ChatID:       42,
		CurrentState: StateBirthPlace,
		Draft: Draft{
			Name:         "Anna",
			BirthDate:    "2000-01-01",
			BirthTime:    "12:00",
			ReferralCode: "AB12CD34",
		},
	}

	assert.NoError(t, storage.SetSession(ctx, 42, session))

	got, err := storage.GetSession(ctx, 42)
	assert.NoError(t, err)
	assert.Equal(t, StateBirthPlace, got.CurrentState)
	assert.Equal(t, "Anna", got.Draft.Name)
	assert.Equal(t, "AB12CD34", got.Draft.ReferralCode)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestRedisStorage_MissingSession(t *testing.T) {
	storage := setupTestStorage(t)

	_, err := storage.GetSession(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestRedisStorage_ClearSession(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	assert.NoError(t, storage.SetSession(ctx, 5, &Session{UserID: 5, CurrentState: StateName}))
	assert.NoError(t, storage.ClearSession(ctx, 5))

	_, err := storage.GetSession(ctx, 5)
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	// Clearing an absent session is not an error.
	assert.NoError(t, storage.ClearSession(ctx, 5))
}
