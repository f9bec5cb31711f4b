package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// sessionStore persists the single refresh token held on a user record.
type sessionStore interface {
	SetRefreshToken(ctx context.Context, userID uuid.UUID, token *string) error
	GetRefreshToken(ctx context.Context, userID uuid.UUID) (*string, error)
}

// SessionTracker owns the one-session-per-user rule: recording a session
// replaces whatever was stored before.
type SessionTracker struct {
	store sessionStore
}

// NewSessionTracker constructs a SessionTracker.
func NewSessionTracker(store sessionStore) *SessionTracker {
	return &SessionTracker{store: store}
}

// RecordSession overwrites the stored refresh token unconditionally.
func (t *SessionTracker) RecordSession(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	if err := t.store.SetRefreshToken(ctx, userID, &refreshToken); err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// ClearSession removes the stored refresh token.
func (t *SessionTracker) ClearSession(ctx context.Context, userID uuid.UUID) error {
	if err := t.store.SetRefreshToken(ctx, userID, nil); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// ValidateSession reports whether presented is exactly the stored token.
// Callers must have verified the token signature first.
func (t *SessionTracker) ValidateSession(ctx context.Context, userID uuid.UUID, presented string) (bool, error) {
	stored, err := t.store.GetRefreshToken(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load session: %w", err)
	}
	if stored == nil || presented == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(presented)) == 1, nil
}
