package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"true-north/internal/model"
)

// ChallengeRepository reads and seeds the challenge catalog.
type ChallengeRepository struct {
	db *gorm.DB
}

func NewChallengeRepository(db *gorm.DB) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

// ListAll returns the whole catalog, newest first.
func (r *ChallengeRepository) ListAll(ctx context.Context) ([]model.Challenge, error) {
	var challenges []model.Challenge
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id ASC").Find(&challenges).Error; err != nil {
		return nil, err
	}
	return challenges, nil
}

func (r *ChallengeRepository) FindByID(ctx context.Context, id string) (*model.Challenge, error) {
	var challenge model.Challenge
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&challenge).Error; err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (r *ChallengeRepository) Create(ctx context.Context, challenge *model.Challenge) error {
	if err := r.db.WithContext(ctx).Create(challenge).Error; err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}
