package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Challenge is a catalog item. Category is used only for grouping.
type Challenge struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description"`
	Category    string    `gorm:"index" json:"category"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (c *Challenge) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// UserChallenge records a user's acceptance of a challenge.
// CompletedAt is nil until the challenge is completed.
type UserChallenge struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	UserID      uint       `gorm:"uniqueIndex:idx_user_challenge" json:"user_id"`
	ChallengeID string     `gorm:"size:36;uniqueIndex:idx_user_challenge" json:"challenge_id"`
	AcceptedAt  time.Time  `gorm:"index" json:"accepted_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Challenge   Challenge  `gorm:"foreignKey:ChallengeID" json:"challenge"`
}

func (uc *UserChallenge) BeforeCreate(*gorm.DB) error {
	if uc.ID == "" {
		uc.ID = uuid.NewString()
	}
	return nil
}

// CompletedBy reports whether the entry was completed at or before asOf.
func (uc UserChallenge) CompletedBy(asOf time.Time) bool {
	return uc.CompletedAt != nil && !uc.CompletedAt.After(asOf)
}
