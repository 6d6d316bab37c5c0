package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"true-north/internal/logging"
	"true-north/internal/metrics"
	"true-north/internal/model"
	"true-north/internal/repository"
)

// TrackerService manages the challenges a user has accepted.
type TrackerService struct {
	identity   Identity
	challenges *repository.ChallengeRepository
	rows       *repository.UserChallengeRepository
	now        func() time.Time
}

func NewTrackerService(identity Identity, challenges *repository.ChallengeRepository, rows *repository.UserChallengeRepository) *TrackerService {
	return &TrackerService{
		identity:   identity,
		challenges: challenges,
		rows:       rows,
		now:        time.Now,
	}
}

// AcceptChallenge adds the challenge to the user's list. The session is checked
// before anything is read; a missing session or one for a different user fails
// with ErrNotAuthenticated. Accepting the same challenge twice fails with
// ErrAlreadyAccepted, including when two accepts race past the existence check.
func (s *TrackerService) AcceptChallenge(ctx context.Context, userID uint, challengeID string) (*model.UserChallenge, error) {
	log := logging.Component("tracker").WithFields(map[string]any{"user_id": userID, "challenge_id": challengeID})

	current, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		metrics.ChallengeAccepts.WithLabelValues("unauthenticated").Inc()
		if errors.Is(err, ErrNotAuthenticated) {
			log.Warn("accept without session")
		}
		return nil, err
	}
	if current != userID {
		metrics.ChallengeAccepts.WithLabelValues("unauthenticated").Inc()
		log.WithField("session_user_id", current).Warn("accept for another user")
		return nil, ErrNotAuthenticated
	}

	challenge, err := s.challenges.FindByID(ctx, challengeID)
	if err != nil {
		metrics.ChallengeAccepts.WithLabelValues("error").Inc()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("challenge %s: %w", challengeID, ErrNotFound)
		}
		log.WithError(err).Error("load challenge")
		return nil, fmt.Errorf("%w: load challenge: %w", ErrFetchFailed, err)
	}

	exists, err := s.rows.Exists(ctx, userID, challengeID)
	if err != nil {
		metrics.ChallengeAccepts.WithLabelValues("error").Inc()
		log.WithError(err).Error("check existing acceptance")
		return nil, fmt.Errorf("%w: check acceptance: %w", ErrFetchFailed, err)
	}
	if exists {
		metrics.ChallengeAccepts.WithLabelValues("duplicate").Inc()
		return nil, ErrAlreadyAccepted
	}

	uc := model.UserChallenge{
		UserID:      userID,
		ChallengeID: challengeID,
		AcceptedAt:  s.now(),
	}
	if err := s.rows.Create(ctx, &uc); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			metrics.ChallengeAccepts.WithLabelValues("duplicate").Inc()
			return nil, ErrAlreadyAccepted
		}
		metrics.ChallengeAccepts.WithLabelValues("error").Inc()
		log.WithError(err).Error("insert user challenge")
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	uc.Challenge = *challenge

	metrics.ChallengeAccepts.WithLabelValues("ok").Inc()
	log.WithField("user_challenge_id", uc.ID).Info("challenge accepted")
	return &uc, nil
}

// CompleteChallenge stamps the completion time. Calling it again overwrites the
// timestamp.
func (s *TrackerService) CompleteChallenge(ctx context.Context, userChallengeID string) (*model.UserChallenge, error) {
	log := logging.Component("tracker").WithField("user_challenge_id", userChallengeID)

	uc, err := s.rows.FindByID(ctx, userChallengeID)
	if err != nil {
		metrics.ChallengeCompletions.WithLabelValues("error").Inc()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user challenge %s: %w", userChallengeID, ErrNotFound)
		}
		log.WithError(err).Error("load user challenge")
		return nil, fmt.Errorf("%w: load user challenge: %w", ErrFetchFailed, err)
	}

	if err := s.rows.MarkCompleted(ctx, uc, s.now()); err != nil {
		metrics.ChallengeCompletions.WithLabelValues("error").Inc()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user challenge %s: %w", userChallengeID, ErrNotFound)
		}
		log.WithError(err).Error("mark completed")
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	metrics.ChallengeCompletions.WithLabelValues("ok").Inc()
	log.Info("challenge completed")
	return uc, nil
}

// ListForUser returns the user's accepted challenges with challenge fields.
func (s *TrackerService) ListForUser(ctx context.Context, userID uint) ([]model.UserChallenge, error) {
	rows, err := s.rows.ListByUser(ctx, userID)
	if err != nil {
		logging.Component("tracker").WithError(err).WithField("user_id", userID).Error("list user challenges")
		return nil, fmt.Errorf("%w: list user challenges: %w", ErrFetchFailed, err)
	}
	return rows, nil
}
