package store

import (
	"context"
	"fmt"

	"registration-service/internal/models"
)

// ExportRows returns one row per participant, joined with its order and the
// buyer's aggregate participant count. Orders without slots still yield one
// row. multiOnly restricts the result to multi-entry buyers.
func (s *Store) ExportRows(ctx context.Context, multiOnly bool) ([]models.ExportRow, error) {
	query := `
		SELECT o.id AS order_id, o.buyer_name, o.buyer_email, o.buyer_phone, o.buyer_gender,
			o.course, o.total_participants, bt.total AS buyer_total_participants,
			o.total_amount, o.is_cancelled, o.recipient_name, o.recipient_phone,
			o.zipcode, o.address, o.address_detail,
			p.participant_index, p.name, p.gender, p.birth_date, p.phone,
			p.course AS participant_course, p.tshirt_size, p.emergency_contact,
			p.emergency_relation, p.is_primary, p.is_completed
		FROM orders o
		JOIN (SELECT buyer_id, SUM(total_participants) AS total FROM orders GROUP BY buyer_id) bt
			ON bt.buyer_id = o.buyer_id
		LEFT JOIN participants p ON p.order_id = o.id`
	var args []interface{}
	if multiOnly {
		query += ` WHERE bt.total >= ?`
		args = append(args, models.MultiBuyerThreshold)
	}
	query += ` ORDER BY o.buyer_id, o.id, p.participant_index`

	rows := []models.ExportRow{}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load export rows: %w", err)
	}
	return rows, nil
}
