package payments

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
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/astroline/astroline-bot/internal/idempotency"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockSubscriptionStore struct {
	mock.Mock
}

func (m *mockSubscriptionStore) RecordPayment(ctx context.Context, paymentID string, userID, amount int64, currency, status string) error {
	args := m.Called(ctx, paymentID, userID, amount, currency, status)
	return args.Error(0)
}

func (m *mockSubscriptionStore) ApplySubscription(ctx context.Context, userID int64, period time.Duration) (time.Time, error) {
	args := m.Called(ctx, userID, period)
	return args.Get(0).(time.Time), args.Error(1)
}

func setupProcessor(t *testing.T, store SubscriptionStore) *Processor {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	idem := idempotency.NewManager(idempotency.NewRedisStore(client, testLogger()), testLogger())
	return NewProcessor(store, idem, 30*24*time.Hour, testLogger())
}

func TestProcessor_Process(t *testing.T) {
	ctx := context.Background()
	expiry := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	store := new(mockSubscriptionStore)
	store.On("RecordPayment", ctx, "pay-1", int64(42), int64(49900), "RUB", "completed").Return(nil).Once()
	store.On("ApplySubscription", ctx, int64(42), 30*24*time.Hour).Return(expiry, nil).Once()

	p := setupProcessor(t, store)

	got, applied, err := p.Process(ctx, CompletedEvent{
		PaymentID: "pay-1",
		Payload:   "subscription_42",
		Amount:    49900,
		Currency:  "RUB",
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, expiry, got)
	store.AssertExpectations(t)
}

func TestProcessor_DuplicateEventIgnored(t *testing.T) {
	ctx := context.Background()
	expiry := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	store := new(mockSubscriptionStore)
	store.On("RecordPayment", ctx, "pay-2", int64(7), int64(49900), "RUB", "completed").Return(nil).Once()
	store.On("ApplySubscription", ctx, int64(7), 30*24*time.Hour).Return(expiry, nil).Once()

	p := setupProcessor(t, store)

	event := CompletedEvent{PaymentID: "pay-2", Payload: "subscription_7", Amount: 49900, Currency: "RUB"}

	_, applied, err := p.Process(ctx, event)
	require.NoError(t, err)
	assert.True(t, applied)

	_, applied, err = p.Process(ctx, event)
	require.NoError(t, err)
	assert.False(t, applied)

	store.AssertExpectations(t)
}

func TestProcessor_BadPayloadRejected(t *testing.T) {
	store := new(mockSubscriptionStore)
	p := setupProcessor(t, store)

	_, applied, err := p.Process(context.Background(), CompletedEvent{
		PaymentID: "pay-3",
		Payload:   "gift_7",
	})
	assert.ErrorIs(t, err, ErrBadPayload)
	assert.False(t, applied)
	store.AssertNotCalled(t, "RecordPayment")
}

func TestProcessor_StoreFailureRetriable(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("db down")

	store := new(mockSubscriptionStore)
	store.On("RecordPayment", ctx, "pay-4", int64(9), int64(49900), "RUB", "completed").Return(boom).Once()
	store.On("RecordPayment", ctx, "pay-4", int64(9), int64(49900), "RUB", "completed").Return(nil).Once()
	store.On("ApplySubscription", ctx, int64(9), 30*24*time.Hour).Return(time.Now().Add(time.Hour), nil).Once()

	p := setupProcessor(t, store)

	event := CompletedEvent{PaymentID: "pay-4", Payload: "subscription_9", Amount: 49900, Currency: "RUB"}

	_, applied, err := p.Process(ctx, event)
	assert.ErrorIs(t, err, boom)
	assert.False(t, applied)

	_, applied, err = p.Process(ctx, event)
	require.NoError(t, err)
	assert.True(t, applied)

	store.AssertExpectations(t)
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int64
		wantErr bool
	}{
		{name: "valid", payload: "subscription_12345", want: 12345},
		{name: "wrong prefix", payload: "донат_12345", wantErr: true},
		{name: "no user id", payload: "subscription_", wantErr: true},
		{name: "non numeric", payload: "subscription_abc", wantErr: true},
		{name: "empty", payload: "", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePayload(tc.payload)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrBadPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
