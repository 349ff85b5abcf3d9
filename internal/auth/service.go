package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	applog "moneymate/internal/log"
	"moneymate/internal/models"
	"moneymate/internal/storage"
)

// SessionDuration is how long sessions last (30 days).
const SessionDuration = 30 * 24 * time.Hour

// Service registers users, logs them in and out, and resolves session cookies.
type Service struct {
	db     *storage.DB
	secret []byte
	logger *applog.Logger
}

// NewService creates a Service that signs cookies with secret.
func NewService(db *storage.DB, secret []byte, logger *applog.Logger) *Service {
	return &Service{db: db, secret: secret, logger: logger.WithComponent(applog.ComponentAuth)}
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user. It does not log the user in.
func (s *Service) Register(ctx context.Context, email, password, confirmation string) (*models.User, error) {
	email = NormalizeEmail(email)
	switch {
	case email == "":
		return nil, fmt.Errorf("%w: email is required", models.ErrValidation)
	case password == "":
		return nil, fmt.Errorf("%w: password is required", models.ErrValidation)
	case password != confirmation:
		return nil, fmt.Errorf("%w: passwords do not match", models.ErrValidation)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.db.CreateUser(ctx, email, hash)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "User registered", applog.FieldUserID, user.ID, applog.FieldOperation, applog.OpRegister)
	return user, nil
}

// Login verifies credentials and opens a new session.
// Unknown emails and wrong passwords both yield models.ErrAuthentication.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Session, error) {
	user, err := s.db.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrAuthentication
		}
		return nil, err
	}
	if !CheckPassword(password, user.PasswordHash) {
		return nil, models.ErrAuthentication
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	now := time.Now()
	session := &models.Session{
		Token:        token,
		UserID:       user.ID,
		ExpiresAt:    now.Add(SessionDuration),
		LastActivity: now,
	}
	if err := s.db.CreateSession(ctx, session.Token, session.UserID, session.ExpiresAt); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "User logged in", applog.FieldUserID, user.ID, applog.FieldOperation, applog.OpLogin)
	return session, nil
}

// Cookie returns the signed cookie value for session.
func (s *Service) Cookie(session *models.Session) (string, error) {
	return SignCookie(session.Token, s.secret, session.ExpiresAt)
}

// Logout destroys the session named by cookieValue. It never fails from the caller's view.
func (s *Service) Logout(ctx context.Context, cookieValue string) {
	token, err := ParseCookie(cookieValue, s.secret)
	if err != nil {
		return
	}
	if err := s.db.DeleteSession(ctx, token); err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete session", applog.FieldError, err, applog.FieldOperation, applog.OpLogout)
	}
}

// Authenticated is the outcome of a successful Authenticate.
type Authenticated struct {
	User    *models.User
	Session models.Session
	// Renewed is set when the session was extended and the cookie must be reissued.
	Renewed bool
}

// Authenticate resolves a cookie value to its user. Sessions past the halfway
// point of their lifetime are renewed.
func (s *Service) Authenticate(ctx context.Context, cookieValue string) (*Authenticated, error) {
	if cookieValue == "" {
		return nil, models.ErrUnauthenticated
	}
	token, err := ParseCookie(cookieValue, s.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthenticated, err)
	}

	info, err := s.db.ValidateSession(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthenticated
		}
		return nil, err
	}

	result := &Authenticated{User: info.User, Session: info.Session}

	now := time.Now()
	if info.Session.ExpiresAt.Sub(now) < SessionDuration/2 {
		newExpiresAt := now.Add(SessionDuration)
		if err := s.db.RenewSession(ctx, token, newExpiresAt); err != nil {
			// Keep the current session if renewal fails.
			s.logger.WarnContext(ctx, "Failed to renew session", applog.FieldError, err)
		} else {
			result.Session.ExpiresAt = newExpiresAt
			result.Session.LastActivity = now
			result.Renewed = true
		}
	}
	return result, nil
}

// SweepExpired deletes expired sessions.
func (s *Service) SweepExpired(ctx context.Context) error {
	n, err := s.db.CleanExpiredSessions(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Expired sessions removed", "count", n)
	}
	return nil
}

// Bootstrap creates the given user when the database has no users yet.
// It is a no-op when email is empty or users already exist.
func (s *Service) Bootstrap(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}
	count, err := s.db.UserCount(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err = s.Register(ctx, email, password, password)
	return err
}
