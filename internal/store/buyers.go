package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"registration-service/internal/models"
)

// buyerAggregateQuery is the one definition of a buyer's totals. Completed
// counts are summed per order first so the join cannot fan out. Callers
// append an optional WHERE and then GROUP BY o.buyer_id.
const buyerAggregateQuery = `
	SELECT o.buyer_id,
		MAX(o.buyer_name) AS buyer_name,
		MAX(o.buyer_phone) AS buyer_phone,
		MAX(o.buyer_gender) AS buyer_gender,
		COUNT(*) AS order_count,
		SUM(o.total_participants) AS total_participants,
		SUM(COALESCE(pc.completed, 0)) AS completed_count,
		SUM(o.total_amount) AS total_amount
	FROM orders o
	LEFT JOIN (
		SELECT order_id, COUNT(*) AS completed
		FROM participants
		WHERE is_completed
		GROUP BY order_id
	) pc ON pc.order_id = o.id`

const multiBuyersQuery = buyerAggregateQuery + ` GROUP BY o.buyer_id HAVING SUM(o.total_participants) >= ?`

// BuyerSummary aggregates all orders of one buyer identity.
func (s *Store) BuyerSummary(ctx context.Context, buyerID string) (*models.BuyerSummary, error) {
	var b models.BuyerSummary
	err := s.db.GetContext(ctx, &b,
		s.db.Rebind(buyerAggregateQuery+` WHERE o.buyer_id = ? GROUP BY o.buyer_id`), buyerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("buyer %s: %w", buyerID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListMultiBuyers returns one page of multi-entry buyers, largest first, and
// the number of matching buyers. Search narrows which buyers are listed but
// never the orders that make up their totals.
func (s *Store) ListMultiBuyers(ctx context.Context, f OrderFilter) ([]models.BuyerSummary, int, error) {
	from := `FROM (` + multiBuyersQuery + `) b`
	args := []interface{}{models.MultiBuyerThreshold}
	if search := strings.TrimSpace(f.Search); search != "" {
		like := containsPattern(search)
		from += ` WHERE b.buyer_id IN (
			SELECT buyer_id FROM orders
			WHERE buyer_name LIKE ?` + likeEscape +
			` OR buyer_id LIKE ?` + likeEscape +
			` OR buyer_phone LIKE ?` + likeEscape + `)`
		args = append(args, like, strings.ToLower(like), like)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind("SELECT COUNT(*) "+from), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count buyers: %w", err)
	}

	limit, offset := f.page()
	buyers := []models.BuyerSummary{}
	err := s.db.SelectContext(ctx, &buyers,
		s.db.Rebind("SELECT b.* "+from+" ORDER BY b.total_participants DESC, b.buyer_id LIMIT ? OFFSET ?"),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list buyers: %w", err)
	}
	return buyers, total, nil
}

// MultiStats sums the aggregates of every multi-entry buyer.
func (s *Store) MultiStats(ctx context.Context) (models.MultiStats, error) {
	var m models.MultiStats
	err := s.db.GetContext(ctx, &m, s.db.Rebind(`
		SELECT COUNT(*) AS multi_buyers,
			COALESCE(SUM(b.total_participants), 0) AS multi_total_participants,
			COALESCE(SUM(b.completed_count), 0) AS multi_completed_participants
		FROM (`+multiBuyersQuery+`) b`), models.MultiBuyerThreshold)
	if err != nil {
		return m, fmt.Errorf("failed to compute multi stats: %w", err)
	}
	return m, nil
}

// Stats backs the admin dashboard.
func (s *Store) Stats(ctx context.Context) (models.DashboardStats, error) {
	var st models.DashboardStats
	err := s.db.GetContext(ctx, &st, `
		SELECT
			(SELECT COUNT(*) FROM orders) AS total_orders,
			(SELECT COUNT(*) FROM participants) AS total_participants,
			(SELECT COUNT(*) FROM participants WHERE is_completed) AS completed_participants`)
	if err != nil {
		return st, fmt.Errorf("failed to compute stats: %w", err)
	}
	st.MultiStats, err = s.MultiStats(ctx)
	return st, err
}
