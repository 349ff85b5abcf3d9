package storage

import (
	"context"
	"fmt"
	"time"

	"moneymate/internal/models"
)

// Session timestamps are stored as unix seconds so expiry checks compare integers.

// CreateSession creates a new session for a user.
func (db *DB) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	now := time.Now()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)",
		token, userID, expiresAt.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// SessionInfo holds session validation data.
type SessionInfo struct {
	User    *models.User
	Session models.Session
}

// ValidateSession checks if a session token is valid and returns the associated user
// together with the session details. Unknown and expired tokens yield models.ErrNotFound.
func (db *DB) ValidateSession(ctx context.Context, token string) (*SessionInfo, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.password_hash, u.created_at, s.last_activity, s.expires_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > ?
	`, token, time.Now().Unix())

	var u models.User
	var lastActivity, expiresAt int64
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &lastActivity, &expiresAt); err != nil {
		return nil, notFound(err, "session")
	}
	return &SessionInfo{
		User: &u,
		Session: models.Session{
			Token:        token,
			UserID:       u.ID,
			LastActivity: time.Unix(lastActivity, 0),
			ExpiresAt:    time.Unix(expiresAt, 0),
		},
	}, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (db *DB) RenewSession(ctx context.Context, token string, newExpiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		time.Now().Unix(), newExpiresAt.Unix(), token,
	)
	return err
}

// DeleteSession removes a session by token.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes all expired sessions and reports how many were removed.
func (db *DB) CleanExpiredSessions(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
