package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"true-north/internal/model"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "true-north-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestKVGetSet(t *testing.T) {
	repo := NewKVRepository(setupDB(t))
	ctx := context.Background()

	_, ok, err := repo.Get(ctx, "daily_challenge:1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.Set(ctx, "daily_challenge:1", `{"day":"2026-02-09"}`))
	require.NoError(t, repo.Set(ctx, "daily_challenge:1", `{"day":"2026-02-10"}`))

	value, ok, err := repo.Get(ctx, "daily_challenge:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"day":"2026-02-10"}`, value)
}

func TestChallengeListNewestFirst(t *testing.T) {
	repo := NewChallengeRepository(setupDB(t))
	ctx := context.Background()
	base := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)

	for i, title := range []string{"Oldest", "Middle", "Newest"} {
		ch := model.Challenge{Title: title, Category: "Mind", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, repo.Create(ctx, &ch))
		require.NotEmpty(t, ch.ID)
	}

	list, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "Newest", list[0].Title)
	require.Equal(t, "Oldest", list[2].Title)

	_, err = repo.FindByID(ctx, "missing")
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestUserChallengeLifecycle(t *testing.T) {
	db := setupDB(t)
	challenges := NewChallengeRepository(db)
	rows := NewUserChallengeRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)

	ch := model.Challenge{Title: "Cold shower", Description: "Two minutes", Category: "Fitness"}
	require.NoError(t, challenges.Create(ctx, &ch))

	uc := model.UserChallenge{UserID: 7, ChallengeID: ch.ID, AcceptedAt: now}
	require.NoError(t, rows.Create(ctx, &uc))

	exists, err := rows.Exists(ctx, 7, ch.ID)
	require.NoError(t, err)
	require.True(t, exists)

	dup := model.UserChallenge{UserID: 7, ChallengeID: ch.ID, AcceptedAt: now}
	require.ErrorIs(t, rows.Create(ctx, &dup), gorm.ErrDuplicatedKey)

	require.NoError(t, rows.MarkCompleted(ctx, &uc, now.Add(time.Hour)))

	list, err := rows.ListByUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Cold shower", list[0].Challenge.Title)
	require.Equal(t, "Fitness", list[0].Challenge.Category)
	require.NotNil(t, list[0].CompletedAt)
	require.True(t, list[0].CompletedAt.Equal(now.Add(time.Hour)))

	missing := model.UserChallenge{ID: "missing"}
	require.ErrorIs(t, rows.MarkCompleted(ctx, &missing, now), gorm.ErrRecordNotFound)
}

func TestSessionReplaceAndExpiry(t *testing.T) {
	repo := NewSessionRepository(setupDB(t))
	ctx := context.Background()
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Replace(ctx, &model.Session{Token: "a", UserID: 1, TelegramID: 100, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Replace(ctx, &model.Session{Token: "b", UserID: 2, TelegramID: 100, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Replace(ctx, &model.Session{Token: "c", UserID: 3, TelegramID: 200, ExpiresAt: now.Add(-time.Minute)}))

	got, err := repo.FindByTelegramID(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, "b", got.Token)

	active, err := repo.ListActive(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, int64(100), active[0].TelegramID)

	purged, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)
}
