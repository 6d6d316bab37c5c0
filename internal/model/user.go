package model

import "time"

// User is an account that signs in with email and password.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;size:320"`
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session binds a signed-in user to a Telegram chat.
type Session struct {
	Token      string `gorm:"primaryKey;size:36"`
	UserID     uint   `gorm:"index"`
	TelegramID int64  `gorm:"uniqueIndex"`
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
