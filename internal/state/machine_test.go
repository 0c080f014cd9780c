package state

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) GetSession(ctx context.Context, userID int64) (*Session, error) {
	args := m.Called(ctx, userID)
	session, _ := args.Get(0).(*Session)
	return session, args.Error(1)
}

func (m *mockStorage) SetSession(ctx context.Context, userID int64, session *Session) error {
	args := m.Called(ctx, userID, session)
	return args.Error(0)
}

func (m *mockStorage) ClearSession(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func TestMachine_Advance(t *testing.T) {
	ctx := context.Background()
	userID := int64(42)
	log := testLogger()

	testCases := []struct {
		name        string
		setupMocks  func(ms *mockStorage)
		newState    State
		draft       Draft
		expectedErr error
	}{
		{
			name: "successful transition",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetSession", mock.Anything, userID).
					Return(&Session{UserID: userID, ChatID: 7, CurrentState: StateName}, nil).Once()
				ms.On("SetSession", mock.Anything, userID, mock.MatchedBy(func(s *Session) bool {
					return s.CurrentState == StateBirthDate && s.Draft.Name == "Anna" && s.ChatID == 7
				})).Return(nil).Once()
			},
			newState: StateBirthDate,
			draft:    Draft{Name: "Anna"},
		},
		{
			name: "invalid transition",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetSession", mock.Anything, userID).
					Return(&Session{UserID: userID, CurrentState: StateName}, nil).Once()
			},
			newState:    StateConfirm,
			expectedErr: ErrInvalidTransition,
		},
		{
			name: "re-prompt stores updated draft without advancing",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetSession", mock.Anything, userID).
					Return(&Session{UserID: userID, CurrentState: StateBirthDate}, nil).Once()
				ms.On("SetSession", mock.Anything, userID, mock.MatchedBy(func(s *Session) bool {
					return s.CurrentState == StateBirthDate
				})).Return(nil).Once()
			},
			newState: StateBirthDate,
		},
		{
			name: "no session starts edit flow",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetSession", mock.Anything, userID).
					Return((*Session)(nil), ErrSessionNotFound).Once()
				ms.On("SetSession", mock.Anything, userID, mock.MatchedBy(func(s *Session) bool {
					return s.CurrentState == StateEditName
				})).Return(nil).Once()
			},
			newState: StateEditName,
		},
		{
			name: "no session cannot resume mid-registration",
			setupMocks: func(ms *mockStorage) {
				ms.On("GetSession", mock.Anything, userID).
					Return((*Session)(nil), ErrSessionNotFound).Once()
			},
			newState:    StateBirthTime,
			expectedErr: ErrInvalidTransition,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ms := &mockStorage{}
			tc.setupMocks(ms)

			fsm := NewMachine(ms, log, nil)
			err := fsm.Advance(ctx, userID, tc.newState, tc.draft)

			if tc.expectedErr != nil {
				if !errors.Is(err, tc.expectedErr) {
					t.Fatalf("expected error %v, got %v", tc.expectedErr, err)
				}
			} else if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			ms.AssertExpectations(t)
		})
	}
}

func TestMachine_Begin(t *testing.T) {
	ctx := context.Background()
	userID := int64(9)
	chatID := int64(100)

	ms := &mockStorage{}
	ms.On("SetSession", mock.Anything, userID, mock.MatchedBy(func(s *Session) bool {
		return s.CurrentState == StateName && s.ChatID == chatID && s.Draft.ReferralCode == "AB12CD34"
	})).Return(nil).Once()

	fsm := NewMachine(ms, testLogger(), nil)
	if err := fsm.Begin(ctx, userID, chatID, StateName, Draft{ReferralCode: "AB12CD34"}); err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}

	ms.AssertExpectations(t)
}

func TestMachine_LockSerializesSameUser(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	userID := int64(77)

	// Simulate another in-flight update holding the lock.
	if err := client.SetNX(ctx, "session:lock:77", 1, lockTTL).Err(); err != nil {
		t.Fatalf("failed to pre-acquire lock: %v", err)
	}

	ms := &mockStorage{}
	fsm := NewMachine(ms, testLogger(), client)

	err := fsm.Begin(ctx, userID, 1, StateName, Draft{})
	if !errors.Is(err, ErrSessionLocked) {
		t.Fatalf("expected ErrSessionLocked, got %v", err)
	}

	// Once released, the same call goes through.
	client.Del(ctx, "session:lock:77")
	ms.On("SetSession", mock.Anything, userID, mock.Anything).Return(nil).Once()

	if err := fsm.Begin(ctx, userID, 1, StateName, Draft{}); err != nil {
		t.Fatalf("Begin after unlock returned error: %v", err)
	}

	ms.AssertExpectations(t)
}
