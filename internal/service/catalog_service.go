package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"true-north/internal/logging"
	"true-north/internal/model"
	"true-north/internal/repository"
)

// ChallengeInput is what the admin API accepts for a new challenge.
type ChallengeInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"required,max=100"`
}

// CategoryGroup is a category and its challenges in catalog order.
type CategoryGroup struct {
	Category   string            `json:"category"`
	Challenges []model.Challenge `json:"challenges"`
}

// CatalogService is the read side of the challenge catalog plus admin seeding.
type CatalogService struct {
	repo *repository.ChallengeRepository
}

func NewCatalogService(repo *repository.ChallengeRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

// ListAll returns every challenge, newest first. Failures are logged, not retried.
func (s *CatalogService) ListAll(ctx context.Context) ([]model.Challenge, error) {
	challenges, err := s.repo.ListAll(ctx)
	if err != nil {
		logging.Component("catalog").WithError(err).Error("list challenges")
		return nil, fmt.Errorf("%w: list challenges: %w", ErrFetchFailed, err)
	}
	return challenges, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*model.Challenge, error) {
	challenge, err := s.repo.FindByID(ctx, id)
	switch {
	case err == nil:
		return challenge, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("challenge %s: %w", id, ErrNotFound)
	default:
		logging.Component("catalog").WithError(err).WithField("challenge_id", id).Error("get challenge")
		return nil, fmt.Errorf("%w: get challenge: %w", ErrFetchFailed, err)
	}
}

func (s *CatalogService) Create(ctx context.Context, input ChallengeInput) (*model.Challenge, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	challenge := model.Challenge{
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
	}
	if err := s.repo.Create(ctx, &challenge); err != nil {
		logging.Component("catalog").WithError(err).Error("create challenge")
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	logging.Component("catalog").WithFields(map[string]any{
		"challenge_id": challenge.ID,
		"category":     challenge.Category,
	}).Info("challenge created")
	return &challenge, nil
}

// GroupByCategory groups challenges by category. Categories keep the order in
// which they first appear; challenges keep their input order.
func GroupByCategory(challenges []model.Challenge) []CategoryGroup {
	index := make(map[string]int)
	var groups []CategoryGroup
	for _, ch := range challenges {
		i, ok := index[ch.Category]
		if !ok {
			i = len(groups)
			index[ch.Category] = i
			groups = append(groups, CategoryGroup{Category: ch.Category})
		}
		groups[i].Challenges = append(groups[i].Challenges, ch)
	}
	return groups
}
