package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"registration-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// OrderFilter selects a page of the order listing.
type OrderFilter struct {
	Search string
	Limit  int
	Offset int
}

func (f OrderFilter) where() (string, []interface{}) {
	search := strings.TrimSpace(f.Search)
	if search == "" {
		return "", nil
	}
	like := containsPattern(search)
	cond := "o.buyer_name LIKE ?" + likeEscape +
		" OR o.buyer_id LIKE ?" + likeEscape +
		" OR o.buyer_phone LIKE ?" + likeEscape
	return " WHERE (" + cond + ")", []interface{}{like, strings.ToLower(like), like}
}

// likeEscape follows every LIKE built by containsPattern.
const likeEscape = ` ESCAPE '\'`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern matches s literally anywhere in a column.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func (f OrderFilter) page() (int, int) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// OrderUpdate carries the admin-editable order fields.
type OrderUpdate struct {
	BuyerName         string
	BuyerEmail        string
	BuyerPhone        string
	BuyerGender       *string
	Course            string
	TotalParticipants int
	RecipientName     string
	RecipientPhone    string
	Zipcode           string
	Address           string
	AddressDetail     string
}

// Resync reports how an order's participant slots were adjusted.
type Resync struct {
	Added   int `json:"participants_added"`
	Removed int `json:"participants_removed"`
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, s.db.Rebind("SELECT * FROM orders WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByBuyerID returns every order of a buyer identity, oldest first.
func (s *Store) GetOrdersByBuyerID(ctx context.Context, buyerID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		s.db.Rebind("SELECT * FROM orders WHERE buyer_id = ? ORDER BY id"), buyerID)
	return orders, err
}

// FindOrdersForLogin returns the buyer's orders whose buyer or recipient
// phone contains phoneDigits, ignoring dashes.
func (s *Store) FindOrdersForLogin(ctx context.Context, buyerID, phoneDigits string) ([]models.Order, error) {
	like := "%" + phoneDigits + "%"
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, s.db.Rebind(`
		SELECT * FROM orders
		WHERE buyer_id = ?
		  AND (REPLACE(buyer_phone, '-', '') LIKE ? OR REPLACE(recipient_phone, '-', '') LIKE ?)
		ORDER BY id`), buyerID, like, like)
	return orders, err
}

// ListOrders returns one page of orders with per-order and per-buyer counts,
// newest first, plus the total number of matching orders.
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.OrderListItem, int, error) {
	where, args := f.where()

	var total int
	if err := s.db.GetContext(ctx, &total, s.db.Rebind("SELECT COUNT(*) FROM orders o"+where), args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	limit, offset := f.page()
	query := `
		SELECT o.*,
			(SELECT COUNT(*) FROM participants p WHERE p.order_id = o.id) AS participant_count,
			(SELECT COUNT(*) FROM participants p WHERE p.order_id = o.id AND p.is_completed) AS completed_count,
			COALESCE(b.total_participants, 0) AS buyer_total_participants,
			COALESCE(b.completed_count, 0) AS buyer_completed_count
		FROM orders o
		LEFT JOIN (` + buyerAggregateQuery + ` GROUP BY o.buyer_id) b ON b.buyer_id = o.buyer_id` +
		where + ` ORDER BY o.id DESC LIMIT ? OFFSET ?`

	items := []models.OrderListItem{}
	err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return items, total, nil
}

// UpdateOrder applies an admin correction. A changed email re-derives the
// buyer id, and the participant slots are resynchronized to
// TotalParticipants in the same transaction.
func (s *Store) UpdateOrder(ctx context.Context, id int64, u OrderUpdate) (Resync, error) {
	var res Resync
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var order models.Order
		err := tx.GetContext(ctx, &order, tx.Rebind("SELECT * FROM orders WHERE id = ?"), id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("order %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE orders SET
				buyer_id = ?, buyer_email = ?, buyer_name = ?, buyer_phone = ?, buyer_gender = ?,
				course = ?, total_participants = ?, recipient_name = ?, recipient_phone = ?,
				zipcode = ?, address = ?, address_detail = ?
			WHERE id = ?`),
			CanonicalBuyerID(u.BuyerEmail), strings.TrimSpace(u.BuyerEmail), u.BuyerName, u.BuyerPhone, u.BuyerGender,
			u.Course, u.TotalParticipants, u.RecipientName, u.RecipientPhone,
			u.Zipcode, u.Address, u.AddressDetail, id)
		if err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}

		res, err = resyncParticipants(ctx, tx, id, u.Course, u.TotalParticipants)
		return err
	})
	return res, err
}

// CancelOrder marks one order cancelled and halves its amount (floored).
// Cancelling twice leaves the amount untouched.
func (s *Store) CancelOrder(ctx context.Context, id int64) (models.CancelResult, error) {
	result := models.CancelResult{OrderID: id}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var cur struct {
			TotalAmount int64 `db:"total_amount"`
			IsCancelled bool  `db:"is_cancelled"`
		}
		err := tx.GetContext(ctx, &cur, tx.Rebind("SELECT total_amount, is_cancelled FROM orders WHERE id = ?"), id)
		if errors.Is(err, sql.ErrNoRows) {
			result.Status = models.CancelStatusNotFound
			return nil
		}
		if err != nil {
			return err
		}
		if cur.IsCancelled {
			result.Status = models.CancelStatusAlreadyCancelled
			return nil
		}

		var newAmount int64
		err = tx.GetContext(ctx, &newAmount, tx.Rebind(`
			UPDATE orders SET is_cancelled = TRUE, cancelled_at = ?, total_amount = total_amount / 2
			WHERE id = ? AND is_cancelled = FALSE
			RETURNING total_amount`), now(), id)
		if errors.Is(err, sql.ErrNoRows) {
			result.Status = models.CancelStatusAlreadyCancelled
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}

		result.Status = models.CancelStatusCancelled
		result.OriginalAmount = cur.TotalAmount
		result.NewAmount = newAmount
		return nil
	})
	return result, err
}

// BackfillBuyerIDs derives buyer_id from the email on rows that lack one.
func (s *Store) BackfillBuyerIDs(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET buyer_id = LOWER(TRIM(buyer_email)) WHERE buyer_id = '' OR buyer_id IS NULL")
	if err != nil {
		return 0, fmt.Errorf("failed to backfill buyer ids: %w", err)
	}
	return res.RowsAffected()
}

// UpdateBuyerGenders sets buyer_gender on every order whose buyer id appears
// in genders and returns the number of orders changed.
func (s *Store) UpdateBuyerGenders(ctx context.Context, genders map[string]string) (int64, error) {
	var updated int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind("UPDATE orders SET buyer_gender = ? WHERE buyer_id = ?"))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for buyerID, gender := range genders {
			res, err := stmt.ExecContext(ctx, gender, buyerID)
			if err != nil {
				return fmt.Errorf("failed to update gender for %s: %w", buyerID, err)
			}
			n, _ := res.RowsAffected()
			updated += n
		}
		return nil
	})
	return updated, err
}
