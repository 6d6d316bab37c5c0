package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"true-north/internal/logging"
	"true-north/internal/metrics"
	"true-north/internal/model"
	"true-north/internal/repository"
)

type contextKey string

const chatIDKey contextKey = "chatID"

// WithChat stores the Telegram chat the request comes from.
func WithChat(ctx context.Context, telegramID int64) context.Context {
	return context.WithValue(ctx, chatIDKey, telegramID)
}

// ChatFromContext extracts the chat stored by WithChat.
func ChatFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(chatIDKey).(int64)
	return id, ok
}

// Identity resolves the signed-in user of the current request.
type Identity interface {
	CurrentUserID(ctx context.Context) (uint, error)
}

// Credentials is what sign-up and sign-in accept.
type Credentials struct {
	Email    string `validate:"required,email,max=320"`
	Password string `validate:"required,min=6,max=72"`
}

// AuthService issues chat-bound sessions for email/password accounts.
type AuthService struct {
	users    *repository.UserRepository
	sessions *repository.SessionRepository
	ttl      time.Duration
	now      func() time.Time
	cost     int
}

func NewAuthService(users *repository.UserRepository, sessions *repository.SessionRepository, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an account. It does not sign the caller in.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (*model.User, error) {
	creds := Credentials{Email: normalizeEmail(email), Password: password}
	if err := validateInput(creds); err != nil {
		return nil, err
	}

	_, err := s.users.FindByEmail(ctx, creds.Email)
	switch {
	case err == nil:
		return nil, ErrEmailTaken
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("%w: find user: %w", ErrFetchFailed, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := model.User{Email: creds.Email, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	logging.Component("auth").WithField("user_id", user.ID).Info("account created")
	return &user, nil
}

// SignIn verifies the password and binds a fresh session to the chat,
// replacing any session the chat already had.
func (s *AuthService) SignIn(ctx context.Context, telegramID int64, email, password string) (*model.Session, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthRejections.WithLabelValues("unknown_email").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: find user: %w", ErrFetchFailed, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.AuthRejections.WithLabelValues("bad_password").Inc()
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	session := model.Session{
		Token:      uuid.NewString(),
		UserID:     user.ID,
		TelegramID: telegramID,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	}
	if err := s.sessions.Replace(ctx, &session); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	logging.Component("auth").WithFields(map[string]any{"user_id": user.ID, "chat_id": telegramID}).Info("signed in")
	return &session, nil
}

func (s *AuthService) SignOut(ctx context.Context, telegramID int64) error {
	if err := s.sessions.DeleteByTelegramID(ctx, telegramID); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// CurrentUserID returns the user signed in on the chat carried by ctx.
func (s *AuthService) CurrentUserID(ctx context.Context) (uint, error) {
	chatID, ok := ChatFromContext(ctx)
	if !ok {
		return 0, ErrNotAuthenticated
	}
	session, err := s.sessions.FindByTelegramID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotAuthenticated
		}
		return 0, fmt.Errorf("%w: find session: %w", ErrFetchFailed, err)
	}
	if session.Expired(s.now()) {
		return 0, ErrNotAuthenticated
	}
	return session.UserID, nil
}

// CurrentUser is CurrentUserID plus the account row.
func (s *AuthService) CurrentUser(ctx context.Context) (*model.User, error) {
	id, err := s.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("%w: find user: %w", ErrFetchFailed, err)
	}
	return user, nil
}

// ActiveChats lists chats with a live session.
func (s *AuthService) ActiveChats(ctx context.Context) ([]int64, error) {
	sessions, err := s.sessions.ListActive(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %w", ErrFetchFailed, err)
	}
	chats := make([]int64, 0, len(sessions))
	for _, session := range sessions {
		chats = append(chats, session.TelegramID)
	}
	return chats, nil
}

// PurgeExpired removes sessions that are no longer valid.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return n, nil
}
