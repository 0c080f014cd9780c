// Package state manages per-user conversation sessions for the bot.
package state

import "context"

// Storage defines the persistence contract for conversation sessions.
type Storage interface {
	// GetSession returns the current session for the specified user.
	GetSession(ctx context.Context, userID int64) (*Session, error)
	// SetSession saves the provided session for the specified user.
	SetSession(ctx context.Context, userID int64, session *Session) error
	// ClearSession removes the session for the specified user.
	ClearSession(ctx context.Context, userID int64) error
}
