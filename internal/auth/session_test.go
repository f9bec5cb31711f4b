package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, store *memoryStore) uuid.UUID {
	t.Helper()
	user, err := store.CreateUser(context.Background(), "s@x.com", "hash", "S")
	require.NoError(t, err)
	return user.ID
}

func TestSessionTrackerRecordOverwrites(t *testing.T) {
	store := newMemoryStore()
	tracker := NewSessionTracker(store)
	ctx := context.Background()
	id := seedUser(t, store)

	require.NoError(t, tracker.RecordSession(ctx, id, "first"))
	require.NoError(t, tracker.RecordSession(ctx, id, "second"))

	ok, err := tracker.ValidateSession(ctx, id, "first")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = tracker.ValidateSession(ctx, id, "second")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSessionTrackerClear(t *testing.T) {
	store := newMemoryStore()
	tracker := NewSessionTracker(store)
	ctx := context.Background()
	id := seedUser(t, store)

	require.NoError(t, tracker.RecordSession(ctx, id, "token"))
	require.NoError(t, tracker.ClearSession(ctx, id))

	ok, err := tracker.ValidateSession(ctx, id, "token")
	require.NoError(t, err)
	require.False(t, ok)

	// clearing twice is harmless
	require.NoError(t, tracker.ClearSession(ctx, id))
}

func TestSessionTrackerValidateEdgeCases(t *testing.T) {
	store := newMemoryStore()
	tracker := NewSessionTracker(store)
	ctx := context.Background()
	id := seedUser(t, store)

	ok, err := tracker.ValidateSession(ctx, id, "anything")
	require.NoError(t, err)
	require.False(t, ok, "no session recorded yet")

	require.NoError(t, tracker.RecordSession(ctx, id, "token"))

	ok, err = tracker.ValidateSession(ctx, id, "")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = tracker.ValidateSession(ctx, id, "token ")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = tracker.ValidateSession(ctx, uuid.New(), "token")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionTrackerUnknownUser(t *testing.T) {
	tracker := NewSessionTracker(newMemoryStore())

	err := tracker.RecordSession(context.Background(), uuid.New(), "token")
	require.ErrorIs(t, err, ErrUserNotFound)
}
