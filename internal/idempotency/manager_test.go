package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestManager(t *testing.T) (Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, testLogger())
	return NewManager(store, testLogger()), mr
}

func TestManager_ExecuteRunsOnce(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	calls := 0
	fn := func(ctx context.Context) error {
		calls++
		return nil
	}

	executed, err := m.Execute(ctx, "payment-1", time.Hour, fn)
	require.NoError(t, err)
	assert.True(t, executed)

	executed, err = m.Execute(ctx, "payment-1", time.Hour, fn)
	require.NoError(t, err)
	assert.False(t, executed)

	assert.Equal(t, 1, calls)
}

func TestManager_ConcurrentDuplicateRejected(t *testing.T) {
	m, mr := setupTestManager(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("idempotency:payment-2:lock", "1"))

	executed, err := m.Execute(ctx, "payment-2", time.Hour, func(ctx context.Context) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrInProgress)
	assert.False(t, executed)
}

func TestManager_FailedOperationCanRetry(t *testing.T) {
	m, _ := setupTestManager(t)
	ctx := context.Background()

	boom := errors.New("boom")
	executed, err := m.Execute(ctx, "payment-3", time.Hour, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, executed)

	executed, err = m.Execute(ctx, "payment-3", time.Hour, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.True(t, executed)
}

func TestManager_NilOperationRejected(t *testing.T) {
	m, _ := setupTestManager(t)

	executed, err := m.Execute(context.Background(), "payment-4", time.Hour, nil)
	assert.Error(t, err)
	assert.False(t, executed)
}
