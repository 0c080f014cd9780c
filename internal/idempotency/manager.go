// Package idempotency guards exactly-once execution of externally triggered
// operations, keyed by a caller-supplied identifier. The payments flow uses
// it to absorb concurrent redeliveries of the same payment confirmation:
// the database upsert handles replays over time, this package handles two
// copies of the same event racing each other.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrInProgress is returned when another worker currently executes the
// operation for the same key.
var ErrInProgress = errors.New("operation with this key is already in progress")

// Operation is the unit of work to run at most once per key.
type Operation func(ctx context.Context) error

// Manager executes operations at most once per key.
type Manager interface {
	// Execute runs fn unless an execution for key already completed within
	// ttl. Completed replays report executed=false with no error.
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (executed bool, err error)
}

type manager struct {
	store Store
	log   *slog.Logger
}

// NewManager builds a Manager over the provided record store.
func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store: store,
		log:   log,
	}
}

const lockHold = time.Minute

func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (bool, error) {
	if fn == nil {
		return false, errors.New("operation fn cannot be nil")
	}

	locked, err := m.store.Lock(ctx, key, lockHold)
	if err != nil {
		return false, err
	}

	if !locked {
		record, err := m.store.Get(ctx, key)
		if err != nil {
			return false, err
		}

		if record != nil && record.Status == StatusCompleted {
			m.log.Info("duplicate operation absorbed", slog.String("key", key))
			return false, nil
		}

		return false, ErrInProgress
	}

	defer func() {
		if err := m.store.ReleaseLock(ctx, key); err != nil {
			m.log.Error("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	// Completed earlier, lock expired in between.
	record, err := m.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if record != nil && record.Status == StatusCompleted {
		return false, nil
	}

	if err := fn(ctx); err != nil {
		return false, err
	}

	if err := m.store.Set(ctx, key, &Record{Status: StatusCompleted}, ttl); err != nil {
		return false, err
	}

	return true, nil
}
