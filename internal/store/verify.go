package store

import (
	"context"
	"fmt"
)

// CourseCount is the number of orders per course tag.
type CourseCount struct {
	Course string `db:"course" json:"course"`
	Count  int    `db:"count" json:"count"`
}

// IntegrityReport lists structural problems in the stored dataset.
type IntegrityReport struct {
	Orders               int           `json:"orders"`
	Participants         int           `json:"participants"`
	OrphanParticipants   int           `json:"orphan_participants"`
	CountMismatchOrders  []int64       `json:"count_mismatch_orders"`
	PrimaryMismatchOrder []int64       `json:"primary_mismatch_orders"`
	MissingBuyerID       int           `json:"missing_buyer_id"`
	Courses              []CourseCount `json:"courses"`
}

// OK reports whether no problem was found.
func (r IntegrityReport) OK() bool {
	return r.OrphanParticipants == 0 && len(r.CountMismatchOrders) == 0 &&
		len(r.PrimaryMismatchOrder) == 0 && r.MissingBuyerID == 0
}

// Verify checks that every order has exactly total_participants slots and
// exactly one primary, and that no slot points at a missing order.
func (s *Store) Verify(ctx context.Context) (*IntegrityReport, error) {
	r := &IntegrityReport{CountMismatchOrders: []int64{}, PrimaryMismatchOrder: []int64{}}

	counts := []struct {
		dst   *int
		query string
	}{
		{&r.Orders, "SELECT COUNT(*) FROM orders"},
		{&r.Participants, "SELECT COUNT(*) FROM participants"},
		{&r.OrphanParticipants, `SELECT COUNT(*) FROM participants p
			LEFT JOIN orders o ON o.id = p.order_id WHERE o.id IS NULL`},
		{&r.MissingBuyerID, "SELECT COUNT(*) FROM orders WHERE buyer_id = '' OR buyer_id IS NULL"},
	}
	for _, c := range counts {
		if err := s.db.GetContext(ctx, c.dst, c.query); err != nil {
			return nil, fmt.Errorf("failed to verify: %w", err)
		}
	}

	err := s.db.SelectContext(ctx, &r.CountMismatchOrders, `
		SELECT o.id FROM orders o
		LEFT JOIN (SELECT order_id, COUNT(*) AS n FROM participants GROUP BY order_id) pc
			ON pc.order_id = o.id
		WHERE COALESCE(pc.n, 0) <> o.total_participants
		ORDER BY o.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to verify participant counts: %w", err)
	}

	err = s.db.SelectContext(ctx, &r.PrimaryMismatchOrder, `
		SELECT o.id FROM orders o
		LEFT JOIN (SELECT order_id, COUNT(*) AS n FROM participants WHERE is_primary GROUP BY order_id) pp
			ON pp.order_id = o.id
		WHERE COALESCE(pp.n, 0) <> 1
		ORDER BY o.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to verify primary slots: %w", err)
	}

	if err := s.db.SelectContext(ctx, &r.Courses,
		"SELECT course, COUNT(*) AS count FROM orders GROUP BY course ORDER BY count DESC, course"); err != nil {
		return nil, fmt.Errorf("failed to count courses: %w", err)
	}
	return r, nil
}
