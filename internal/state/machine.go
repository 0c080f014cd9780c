package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	userLockKeyPattern = "session:lock:%d"
	lockTTL            = 5 * time.Second
)

var (
	// ErrInvalidTransition indicates that a requested transition is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrSessionNotFound indicates that a user session record does not exist.
	ErrSessionNotFound = errors.New("user session not found")
	// ErrSessionLocked indicates that a concurrent update already holds the lock.
	ErrSessionLocked = errors.New("session is locked, try again later")
)

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// Machine describes the operations supported by the conversation controller.
type Machine interface {
	GetSession(ctx context.Context, userID int64) (*Session, error)
	// Begin opens a fresh session in the given state, replacing any previous one.
	Begin(ctx context.Context, userID, chatID int64, s State, draft Draft) error
	// Advance validates the transition from the stored state, then saves the
	// new state together with the updated draft.
	Advance(ctx context.Context, userID int64, newState State, draft Draft) error
	ClearSession(ctx context.Context, userID int64) error
}

// machine is a concrete Machine backed by Storage and Redis locking. The
// lock serializes concurrent inputs from the same user, so a session never
// interleaves with itself.
type machine struct {
	storage     Storage
	log         *slog.Logger
	redisClient *redis.Client
}

// NewMachine creates a conversation controller using the provided storage
// backend and redis client for per-user locking.
func NewMachine(storage Storage, log *slog.Logger, redisClient *redis.Client) Machine {
	if log == nil {
		log = slog.Default()
	}

	return &machine{
		storage:     storage,
		log:         log,
		redisClient: redisClient,
	}
}

func (m *machine) GetSession(ctx context.Context, userID int64) (*Session, error) {
	return m.storage.GetSession(ctx, userID)
}

func (m *machine) Begin(ctx context.Context, userID, chatID int64, s State, draft Draft) error {
	if err := m.lock(ctx, userID); err != nil {
		return err
	}
	defer m.unlock(ctx, userID)

	transitionRecorder(string(StateNone), string(s))

	return m.storage.SetSession(ctx, userID, &Session{
		UserID:       userID,
		ChatID:       chatID,
		CurrentState: s,
		Draft:        draft,
	})
}

func (m *machine) Advance(ctx context.Context, userID int64, newState State, draft Draft) error {
	if err := m.lock(ctx, userID); err != nil {
		return err
	}
	defer m.unlock(ctx, userID)

	current := StateNone
	chatID := int64(0)

	stored, err := m.storage.GetSession(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			return err
		}
	} else if stored != nil {
		current = stored.CurrentState
		chatID = stored.ChatID
	}

	if !IsTransitionAllowed(current, newState) {
		m.log.Warn("invalid state transition", "user_id", userID, "from", current, "to", newState)
		return ErrInvalidTransition
	}

	transitionRecorder(string(current), string(newState))

	return m.storage.SetSession(ctx, userID, &Session{
		UserID:       userID,
		ChatID:       chatID,
		CurrentState: newState,
		Draft:        draft,
	})
}

func (m *machine) ClearSession(ctx context.Context, userID int64) error {
	if err := m.lock(ctx, userID); err != nil {
		return err
	}
	defer m.unlock(ctx, userID)

	return m.storage.ClearSession(ctx, userID)
}

func (m *machine) lock(ctx context.Context, userID int64) error {
	if m.redisClient == nil {
		m.log.Warn("redis client not configured for session locks; skipping", "user_id", userID)
		return nil
	}

	key := fmt.Sprintf(userLockKeyPattern, userID)
	acquired, err := m.redisClient.SetNX(ctx, key, 1, lockTTL).Result()
	if err != nil {
		m.log.Error("failed to acquire session lock", "user_id", userID, "error", err)
		return err
	}

	if !acquired {
		m.log.Warn("session lock already held", "user_id", userID)
		return ErrSessionLocked
	}

	return nil
}

func (m *machine) unlock(ctx context.Context, userID int64) {
	if m.redisClient == nil {
		return
	}

	key := fmt.Sprintf(userLockKeyPattern, userID)
	if err := m.redisClient.Del(ctx, key).Err(); err != nil {
		m.log.Error("failed to release session lock", "user_id", userID, "error", err)
	}
}
