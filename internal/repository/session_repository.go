package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"true-north/internal/model"
)

// SessionRepository stores chat-bound sessions.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Replace stores the session, dropping any previous session of the same chat.
func (r *SessionRepository) Replace(ctx context.Context, session *model.Session) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("telegram_id = ?", session.TelegramID).Delete(&model.Session{}).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(session).Error
	})
	if err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

func (r *SessionRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.Session, error) {
	var session model.Session
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) DeleteByTelegramID(ctx context.Context, telegramID int64) error {
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).Delete(&model.Session{}).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListActive returns sessions that are still valid at now.
func (r *SessionRepository) ListActive(ctx context.Context, now time.Time) ([]model.Session, error) {
	var sessions []model.Session
	if err := r.db.WithContext(ctx).Where("expires_at > ?", now).Order("created_at ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// DeleteExpired removes sessions that expired at or before now and reports how many.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&model.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
