package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"registration-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// ParticipantAnswers are the fields a buyer submits for one slot.
type ParticipantAnswers struct {
	Name              string
	Gender            string
	BirthDate         string
	Phone             string
	TshirtSize        string
	EmergencyContact  string
	EmergencyRelation string
}

// ParticipantUpdate is an admin override of a participant row.
type ParticipantUpdate struct {
	Name              *string
	Gender            *string
	BirthDate         *string
	Phone             *string
	Course            string
	TshirtSize        *string
	EmergencyContact  *string
	EmergencyRelation *string
	IsCompleted       bool
}

// GetParticipantsByOrderID returns an order's slots by index.
func (s *Store) GetParticipantsByOrderID(ctx context.Context, orderID int64) ([]models.Participant, error) {
	participants := []models.Participant{}
	err := s.db.SelectContext(ctx, &participants,
		s.db.Rebind("SELECT * FROM participants WHERE order_id = ? ORDER BY participant_index"), orderID)
	return participants, err
}

// GetParticipantsByBuyerID returns the slots of every order of a buyer.
func (s *Store) GetParticipantsByBuyerID(ctx context.Context, buyerID string) ([]models.Participant, error) {
	participants := []models.Participant{}
	err := s.db.SelectContext(ctx, &participants, s.db.Rebind(`
		SELECT p.* FROM participants p
		JOIN orders o ON o.id = p.order_id
		WHERE o.buyer_id = ?
		ORDER BY p.order_id, p.participant_index`), buyerID)
	return participants, err
}

// GetParticipantByID retrieves a participant by ID
func (s *Store) GetParticipantByID(ctx context.Context, id int64) (*models.Participant, error) {
	var p models.Participant
	err := s.db.GetContext(ctx, &p, s.db.Rebind("SELECT * FROM participants WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("participant %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertParticipant stores a buyer's answers for one slot and marks it
// complete. A missing slot is created with the given course.
func (s *Store) UpsertParticipant(ctx context.Context, orderID int64, index int, course string, a ParticipantAnswers) (*models.Participant, error) {
	ts := now()
	var p models.Participant
	err := s.db.GetContext(ctx, &p, s.db.Rebind(`
		INSERT INTO participants (
			order_id, participant_index, name, gender, birth_date, phone, course,
			tshirt_size, emergency_contact, emergency_relation, option_raw,
			is_primary, is_completed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, TRUE, ?, ?)
		ON CONFLICT (order_id, participant_index) DO UPDATE SET
			name = excluded.name,
			gender = excluded.gender,
			birth_date = excluded.birth_date,
			phone = excluded.phone,
			tshirt_size = excluded.tshirt_size,
			emergency_contact = excluded.emergency_contact,
			emergency_relation = excluded.emergency_relation,
			is_completed = TRUE,
			updated_at = excluded.updated_at
		RETURNING *`),
		orderID, index, a.Name, a.Gender, a.BirthDate, a.Phone, course,
		a.TshirtSize, a.EmergencyContact, a.EmergencyRelation,
		index == 0, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to save participant: %w", err)
	}
	return &p, nil
}

// UpdateParticipant overwrites a participant row, completion flag included.
func (s *Store) UpdateParticipant(ctx context.Context, id int64, u ParticipantUpdate) (*models.Participant, error) {
	var p models.Participant
	err := s.db.GetContext(ctx, &p, s.db.Rebind(`
		UPDATE participants SET
			name = ?, gender = ?, birth_date = ?, phone = ?, course = ?,
			tshirt_size = ?, emergency_contact = ?, emergency_relation = ?,
			is_completed = ?, updated_at = ?
		WHERE id = ?
		RETURNING *`),
		u.Name, u.Gender, u.BirthDate, u.Phone, u.Course,
		u.TshirtSize, u.EmergencyContact, u.EmergencyRelation,
		u.IsCompleted, now(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("participant %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update participant: %w", err)
	}
	return &p, nil
}

// resyncParticipants grows or shrinks an order's slots to total. Surplus
// slots go highest index first and at least one slot always remains; new
// slots are appended empty with the order's course.
func resyncParticipants(ctx context.Context, tx *sqlx.Tx, orderID int64, course string, total int) (Resync, error) {
	var res Resync
	if total < 1 {
		total = 1
	}

	var indices []int
	err := tx.SelectContext(ctx, &indices, tx.Rebind(
		"SELECT participant_index FROM participants WHERE order_id = ? ORDER BY participant_index DESC"), orderID)
	if err != nil {
		return res, fmt.Errorf("failed to load participant slots: %w", err)
	}

	for len(indices) > total {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			"DELETE FROM participants WHERE order_id = ? AND participant_index = ?"), orderID, indices[0]); err != nil {
			return res, fmt.Errorf("failed to remove participant slot: %w", err)
		}
		indices = indices[1:]
		res.Removed++
	}

	next := 0
	if len(indices) > 0 {
		next = indices[0] + 1
	}
	ts := now()
	for n := len(indices); n < total; n++ {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO participants (order_id, participant_index, course, option_raw, is_primary, is_completed, created_at, updated_at)
			VALUES (?, ?, ?, '', ?, FALSE, ?, ?)`),
			orderID, next, course, next == 0, ts, ts)
		if err != nil {
			return res, fmt.Errorf("failed to add participant slot: %w", err)
		}
		next++
		res.Added++
	}
	return res, nil
}
