// Package session keeps short-lived per-user conversation state, such as a
// lineup the user has not started yet.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wine-cellar/internal/database"
)

// Session represents an active user session (e.g., a draft lineup)
type Session struct {
	ID          string
	UserID      string
	SessionType string
	ContextData string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Decode unmarshals the context_data JSON field into v.
func (s *Session) Decode(v any) error {
	return json.Unmarshal([]byte(s.ContextData), v)
}

// Repository provides access to session persistence operations
type Repository struct {
	db  database.DBTX
	now func() time.Time
}

// NewRepository creates a new Repository instance
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Put replaces the user's session of the given type and returns its ID.
func (r *Repository) Put(ctx context.Context, userID, sessionType string, data any, ttl time.Duration) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session data: %w", err)
	}

	if err := r.Delete(ctx, userID, sessionType); err != nil {
		return "", err
	}

	now := r.now().UTC()
	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, session_type, context_data, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, userID, sessionType, string(jsonData), now.Add(ttl), now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return id, nil
}

// GetActive retrieves the most recent non-expired session of a type, or nil.
func (r *Repository) GetActive(ctx context.Context, userID, sessionType string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, session_type, context_data, expires_at, created_at
		FROM sessions
		WHERE user_id = ? AND session_type = ? AND expires_at > ?
		ORDER BY created_at DESC
		LIMIT 1`,
		userID, sessionType, r.now().UTC(),
	)

	var s Session
	if err := row.Scan(&s.ID, &s.UserID, &s.SessionType, &s.ContextData, &s.ExpiresAt, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// Delete removes the user's sessions of a type.
func (r *Repository) Delete(ctx context.Context, userID, sessionType string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ? AND session_type = ?`, userID, sessionType); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CleanupExpired removes all expired sessions.
func (r *Repository) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	return res.RowsAffected()
}
