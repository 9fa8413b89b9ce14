package store

import (
	"context"
	"fmt"

	"registration-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// ReplaceAll swaps the whole dataset for drafts in one transaction. Existing
// participants, orders and buyer sessions are removed first. On error
// nothing changes. Draft IDs are filled in on success.
func (s *Store) ReplaceAll(ctx context.Context, drafts []models.OrderDraft) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"participants", "sessions", "orders"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		orderStmt, err := tx.PrepareNamedContext(ctx, `
			INSERT INTO orders (
				buyer_id, buyer_email, buyer_name, buyer_phone, buyer_gender, total_participants,
				product_name, course, option_raw, recipient_name, recipient_phone, zipcode,
				address, address_detail, total_amount, is_cancelled, created_at
			) VALUES (
				:buyer_id, :buyer_email, :buyer_name, :buyer_phone, :buyer_gender, :total_participants,
				:product_name, :course, :option_raw, :recipient_name, :recipient_phone, :zipcode,
				:address, :address_detail, :total_amount, :is_cancelled, :created_at
			) RETURNING id`)
		if err != nil {
			return fmt.Errorf("failed to prepare order insert: %w", err)
		}
		defer orderStmt.Close()

		partStmt, err := tx.PrepareNamedContext(ctx, `
			INSERT INTO participants (
				order_id, participant_index, name, gender, birth_date, phone, course,
				tshirt_size, emergency_contact, emergency_relation, option_raw,
				is_primary, is_completed, created_at, updated_at
			) VALUES (
				:order_id, :participant_index, :name, :gender, :birth_date, :phone, :course,
				:tshirt_size, :emergency_contact, :emergency_relation, :option_raw,
				:is_primary, :is_completed, :created_at, :updated_at
			) RETURNING id`)
		if err != nil {
			return fmt.Errorf("failed to prepare participant insert: %w", err)
		}
		defer partStmt.Close()

		for i := range drafts {
			d := &drafts[i]
			if err := orderStmt.GetContext(ctx, &d.Order.ID, d.Order); err != nil {
				return fmt.Errorf("failed to insert order for %s: %w", d.Order.BuyerID, err)
			}
			for j := range d.Participants {
				p := &d.Participants[j]
				p.OrderID = d.Order.ID
				if err := partStmt.GetContext(ctx, &p.ID, p); err != nil {
					return fmt.Errorf("failed to insert participant %d of order %d: %w", p.ParticipantIndex, d.Order.ID, err)
				}
			}
		}
		return nil
	})
}
