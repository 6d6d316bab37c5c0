package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignUpValidatesAndRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.SignUp(ctx, "not-an-email", "secret1")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.auth.SignUp(ctx, "ada@example.com", "123")
	require.ErrorIs(t, err, ErrInvalidInput)

	user, err := f.auth.SignUp(ctx, "  Ada@Example.com ", "secret1")
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", user.Email)
	require.NotEqual(t, "secret1", user.PasswordHash)

	_, err = f.auth.SignUp(ctx, "ada@example.com", "another1")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignInBindsSessionToChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.auth.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	_, err = f.auth.SignIn(ctx, 42, "ada@example.com", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.SignIn(ctx, 42, "nobody@example.com", "secret1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.auth.CurrentUserID(WithChat(ctx, 42))
	require.ErrorIs(t, err, ErrNotAuthenticated)

	session, err := f.auth.SignIn(ctx, 42, "ADA@example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, user.ID, session.UserID)

	id, err := f.auth.CurrentUserID(WithChat(ctx, 42))
	require.NoError(t, err)
	require.Equal(t, user.ID, id)

	_, err = f.auth.CurrentUserID(ctx)
	require.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = f.auth.CurrentUserID(WithChat(ctx, 43))
	require.ErrorIs(t, err, ErrNotAuthenticated)

	current, err := f.auth.CurrentUser(WithChat(ctx, 42))
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", current.Email)

	chats, err := f.auth.ActiveChats(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{42}, chats)

	require.NoError(t, f.auth.SignOut(ctx, 42))
	_, err = f.auth.CurrentUserID(WithChat(ctx, 42))
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestSessionsExpire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	f.auth.now = func() time.Time { return now }
	f.auth.ttl = time.Hour

	_, err := f.auth.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	_, err = f.auth.SignIn(ctx, 42, "ada@example.com", "secret1")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = f.auth.CurrentUserID(WithChat(ctx, 42))
	require.ErrorIs(t, err, ErrNotAuthenticated)

	chats, err := f.auth.ActiveChats(ctx)
	require.NoError(t, err)
	require.Empty(t, chats)

	purged, err := f.auth.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)
}
