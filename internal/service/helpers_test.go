package service

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"true-north/internal/repository"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "true-north-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type fixture struct {
	db      *gorm.DB
	auth    *AuthService
	catalog *CatalogService
	tracker *TrackerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupDB(t)
	challenges := repository.NewChallengeRepository(db)
	auth := NewAuthService(repository.NewUserRepository(db), repository.NewSessionRepository(db), 0)
	auth.cost = bcrypt.MinCost
	return &fixture{
		db:      db,
		auth:    auth,
		catalog: NewCatalogService(challenges),
		tracker: NewTrackerService(auth, challenges, repository.NewUserChallengeRepository(db)),
	}
}
