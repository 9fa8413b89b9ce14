package store

import (
	"context"
	"fmt"

	"registration-service/internal/models"
)

// InsertAuditEntry records an event once. It reports false when the event
// id was already recorded.
func (s *Store) InsertAuditEntry(ctx context.Context, e models.AuditEntry) (bool, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO audit_log (event_id, event_type, order_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`),
		e.EventID, e.EventType, e.OrderID, e.Payload, e.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert audit entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListAuditEntries returns the newest entries first. A nil orderID lists
// every entry.
func (s *Store) ListAuditEntries(ctx context.Context, orderID *int64, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	entries := []models.AuditEntry{}
	var err error
	if orderID != nil {
		err = s.db.SelectContext(ctx, &entries, s.db.Rebind(
			"SELECT * FROM audit_log WHERE order_id = ? ORDER BY created_at DESC, event_id LIMIT ?"), *orderID, limit)
	} else {
		err = s.db.SelectContext(ctx, &entries, s.db.Rebind(
			"SELECT * FROM audit_log ORDER BY created_at DESC, event_id LIMIT ?"), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
