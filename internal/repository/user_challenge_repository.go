package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"true-north/internal/model"
)

// UserChallengeRepository handles the user ↔ challenge join rows.
type UserChallengeRepository struct {
	db *gorm.DB
}

func NewUserChallengeRepository(db *gorm.DB) *UserChallengeRepository {
	return &UserChallengeRepository{db: db}
}

func (r *UserChallengeRepository) Create(ctx context.Context, uc *model.UserChallenge) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(uc).Error; err != nil {
		return fmt.Errorf("create user challenge: %w", err)
	}
	return nil
}

func (r *UserChallengeRepository) FindByID(ctx context.Context, id string) (*model.UserChallenge, error) {
	var uc model.UserChallenge
	if err := r.db.WithContext(ctx).Preload("Challenge").Where("id = ?", id).First(&uc).Error; err != nil {
		return nil, err
	}
	return &uc, nil
}

// Exists reports whether the user already accepted the challenge.
func (r *UserChallengeRepository) Exists(ctx context.Context, userID uint, challengeID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.UserChallenge{}).
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByUser returns the user's rows with challenge fields joined, newest accept first.
func (r *UserChallengeRepository) ListByUser(ctx context.Context, userID uint) ([]model.UserChallenge, error) {
	var rows []model.UserChallenge
	if err := r.db.WithContext(ctx).Preload("Challenge").
		Where("user_id = ?", userID).
		Order("accepted_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkCompleted overwrites the completion timestamp. Last write wins.
func (r *UserChallengeRepository) MarkCompleted(ctx context.Context, uc *model.UserChallenge, completedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.UserChallenge{}).
		Where("id = ?", uc.ID).
		Update("completed_at", completedAt)
	if res.Error != nil {
		return fmt.Errorf("complete user challenge: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	uc.CompletedAt = &completedAt
	return nil
}
