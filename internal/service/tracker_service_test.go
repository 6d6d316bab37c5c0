package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"true-north/internal/model"
)

func signedIn(t *testing.T, f *fixture, chatID int64, email string) (context.Context, uint) {
	t.Helper()
	ctx := context.Background()
	user, err := f.auth.SignUp(ctx, email, "secret1")
	require.NoError(t, err)
	_, err = f.auth.SignIn(ctx, chatID, email, "secret1")
	require.NoError(t, err)
	return WithChat(ctx, chatID), user.ID
}

func seedChallenge(t *testing.T, f *fixture, title, category string) *model.Challenge {
	t.Helper()
	ch, err := f.catalog.Create(context.Background(), ChallengeInput{Title: title, Description: title + " today", Category: category})
	require.NoError(t, err)
	return ch
}

func TestAcceptThenCompleteReportsFullProgress(t *testing.T) {
	f := newFixture(t)
	ctx, userID := signedIn(t, f, 42, "ada@example.com")
	x := seedChallenge(t, f, "Cold shower", "Fitness")

	uc, err := f.tracker.AcceptChallenge(ctx, userID, x.ID)
	require.NoError(t, err)
	require.Nil(t, uc.CompletedAt)
	require.Equal(t, "Cold shower", uc.Challenge.Title)

	_, err = f.tracker.CompleteChallenge(ctx, uc.ID)
	require.NoError(t, err)

	now := time.Now()
	list, err := f.tracker.ListForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, x.ID, list[0].ChallengeID)
	require.Equal(t, "Fitness", list[0].Challenge.Category)
	require.NotNil(t, list[0].CompletedAt)
	require.False(t, list[0].CompletedAt.After(now))
	require.Equal(t, 1.0, ComputeProgress(list, now))
}

func TestAcceptWithoutSessionFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.auth.SignUp(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	x := seedChallenge(t, f, "Cold shower", "Fitness")

	_, err = f.tracker.AcceptChallenge(WithChat(ctx, 42), user.ID, x.ID)
	require.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = f.tracker.AcceptChallenge(ctx, user.ID, x.ID)
	require.ErrorIs(t, err, ErrNotAuthenticated)

	list, err := f.tracker.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestAcceptForAnotherUserFails(t *testing.T) {
	f := newFixture(t)
	ctx, _ := signedIn(t, f, 42, "ada@example.com")
	other, err := f.auth.SignUp(context.Background(), "bob@example.com", "secret1")
	require.NoError(t, err)
	x := seedChallenge(t, f, "Cold shower", "Fitness")

	_, err = f.tracker.AcceptChallenge(ctx, other.ID, x.ID)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAcceptTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx, userID := signedIn(t, f, 42, "ada@example.com")
	x := seedChallenge(t, f, "Cold shower", "Fitness")

	_, err := f.tracker.AcceptChallenge(ctx, userID, x.ID)
	require.NoError(t, err)
	_, err = f.tracker.AcceptChallenge(ctx, userID, x.ID)
	require.ErrorIs(t, err, ErrAlreadyAccepted)

	list, err := f.tracker.ListForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestAcceptUnknownChallenge(t *testing.T) {
	f := newFixture(t)
	ctx, userID := signedIn(t, f, 42, "ada@example.com")

	_, err := f.tracker.AcceptChallenge(ctx, userID, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteOverwritesTimestamp(t *testing.T) {
	f := newFixture(t)
	ctx, userID := signedIn(t, f, 42, "ada@example.com")
	x := seedChallenge(t, f, "Cold shower", "Fitness")

	first := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)
	f.tracker.now = func() time.Time { return first }

	uc, err := f.tracker.AcceptChallenge(ctx, userID, x.ID)
	require.NoError(t, err)
	_, err = f.tracker.CompleteChallenge(ctx, uc.ID)
	require.NoError(t, err)

	f.tracker.now = func() time.Time { return second }
	done, err := f.tracker.CompleteChallenge(ctx, uc.ID)
	require.NoError(t, err)
	require.True(t, done.CompletedAt.Equal(second))

	_, err = f.tracker.CompleteChallenge(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListForUserNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx, userID := signedIn(t, f, 42, "ada@example.com")
	a := seedChallenge(t, f, "Push-ups", "Fitness")
	b := seedChallenge(t, f, "Meditate", "Mind")

	base := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	f.tracker.now = func() time.Time { return base }
	_, err := f.tracker.AcceptChallenge(ctx, userID, a.ID)
	require.NoError(t, err)
	f.tracker.now = func() time.Time { return base.Add(time.Hour) }
	_, err = f.tracker.AcceptChallenge(ctx, userID, b.ID)
	require.NoError(t, err)

	list, err := f.tracker.ListForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Meditate", list[0].Challenge.Title)
	require.Equal(t, 0.0, ComputeProgress(list, base.Add(2*time.Hour)))
}

func TestAcceptAfterSignOutFailsBeforeAnyLookup(t *testing.T) {
	f := newFixture(t)
	ctx, userID := signedIn(t, f, 42, "ada@example.com")
	x := seedChallenge(t, f, "Cold shower", "Fitness")

	_, err := f.tracker.AcceptChallenge(ctx, userID, x.ID)
	require.NoError(t, err)
	require.NoError(t, f.auth.SignOut(context.Background(), 42))

	_, err = f.tracker.AcceptChallenge(ctx, userID, x.ID)
	require.ErrorIs(t, err, ErrNotAuthenticated)
	require.NotErrorIs(t, err, ErrAlreadyAccepted)

	_, err = f.tracker.AcceptChallenge(ctx, userID, "missing")
	require.ErrorIs(t, err, ErrNotAuthenticated)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestConcurrentAcceptMapsUniqueViolation(t *testing.T) {
	f := newFixture(t)
	ctx, userID := signedIn(t, f, 42, "ada@example.com")
	x := seedChallenge(t, f, "Cold shower", "Fitness")

	// Insert a twin row between the existence check and the insert.
	inserted := false
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:twin_insert", func(tx *gorm.DB) {
		if inserted || tx.Statement.Table != "user_challenges" {
			return
		}
		inserted = true
		twin := model.UserChallenge{UserID: userID, ChallengeID: x.ID, AcceptedAt: time.Now()}
		tx.Session(&gorm.Session{NewDB: true}).Omit(clause.Associations).Create(&twin)
	}))

	_, err := f.tracker.AcceptChallenge(ctx, userID, x.ID)
	require.True(t, inserted)
	require.ErrorIs(t, err, ErrAlreadyAccepted)
	require.NotErrorIs(t, err, ErrWriteFailed)
}
