package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"registration-service/internal/models"
)

// CreateSession stores a buyer session.
func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	sess.CreatedAt = now()
	sess.ExpiresAt = sess.ExpiresAt.UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		"INSERT INTO sessions (id, buyer_id, phone, expires_at, created_at) VALUES (?, ?, ?, ?, ?)"),
		sess.ID, sess.BuyerID, sess.Phone, sess.ExpiresAt, sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession returns a session that has not expired at the given time.
func (s *Store) GetSession(ctx context.Context, id string, at time.Time) (*models.Session, error) {
	var sess models.Session
	err := s.db.GetContext(ctx, &sess, s.db.Rebind("SELECT * FROM sessions WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !sess.ExpiresAt.After(at) {
		return nil, fmt.Errorf("session expired: %w", ErrNotFound)
	}
	return &sess, nil
}

// DeleteSession removes a session. Unknown ids are not an error.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM sessions WHERE id = ?"), id)
	return err
}

// DeleteExpiredSessions removes sessions that expired before at.
func (s *Store) DeleteExpiredSessions(ctx context.Context, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM sessions WHERE expires_at <= ?"),
		at.UTC().Truncate(time.Second))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
