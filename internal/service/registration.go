package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"registration-service/internal/models"
	"registration-service/internal/parser"
	"registration-service/internal/store"
	"registration-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionTTL is the lifetime of a buyer session.
const SessionTTL = 24 * time.Hour

// ParticipantEvents is notified when a buyer completes a slot.
type ParticipantEvents interface {
	PublishParticipantCompleted(ctx context.Context, event models.ParticipantCompletedEvent) error
}

// RegistrationService handles buyer self-service
type RegistrationService struct {
	store     *store.Store
	events    ParticipantEvents
	multiOnly bool
	now       func() time.Time
	logger    *zap.Logger
}

// NewRegistrationService creates a new registration service. With multiOnly
// set, only buyers holding two or more entries may log in.
func NewRegistrationService(store *store.Store, events ParticipantEvents, multiOnly bool) *RegistrationService {
	return &RegistrationService{
		store:     store,
		events:    events,
		multiOnly: multiOnly,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// LoginRequest is the buyer login form
type LoginRequest struct {
	Email string `json:"email" binding:"required"`
	Phone string `json:"phone" binding:"required"`
}

// LoginResponse is returned on a successful buyer login
type LoginResponse struct {
	Session    *models.Session `json:"-"`
	Email      string          `json:"email"`
	OrderCount int             `json:"order_count"`
}

// ParticipantRequest is the per-slot form a buyer submits
type ParticipantRequest struct {
	ParticipantIndex  *int   `json:"participant_index"`
	Name              string `json:"name"`
	Gender            string `json:"gender"`
	BirthDate         string `json:"birth_date"`
	Phone             string `json:"phone"`
	TshirtSize        string `json:"tshirt_size"`
	EmergencyContact  string `json:"emergency_contact"`
	EmergencyRelation string `json:"emergency_relation"`
}

// OrderWithParticipants is an order with its slots
type OrderWithParticipants struct {
	models.Order
	Participants []models.Participant `json:"participants"`
}

// BuyerOverview is everything a logged-in buyer sees
type BuyerOverview struct {
	Buyer          models.BuyerSummary     `json:"buyer"`
	Orders         []OrderWithParticipants `json:"orders"`
	IsAllCompleted bool                    `json:"is_all_completed"`
}

// Login matches email and phone against the buyer's orders and opens a
// session. The phone may match either the buyer or the recipient phone.
func (s *RegistrationService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	ctx, span := util.StartSpan(ctx, "RegistrationService.Login")
	defer span.End()

	buyerID := store.CanonicalBuyerID(req.Email)
	if buyerID == "" {
		return nil, invalid("email", "required")
	}
	digits := parser.Digits(req.Phone)
	if len(digits) < 10 {
		return nil, invalid("phone", "must contain at least 10 digits")
	}

	orders, err := s.store.FindOrdersForLogin(ctx, buyerID, digits)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to find orders: %w", err)
	}
	if len(orders) == 0 {
		util.LoginAttemptsTotal.WithLabelValues("buyer", "no_match").Inc()
		return nil, ErrUnauthorized
	}

	if s.multiOnly {
		summary, err := s.store.BuyerSummary(ctx, buyerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load buyer summary: %w", err)
		}
		if !summary.IsMulti() {
			util.LoginAttemptsTotal.WithLabelValues("buyer", "single_entry").Inc()
			return nil, ErrUnauthorized
		}
	}

	now := s.now()
	if n, err := s.store.DeleteExpiredSessions(ctx, now); err != nil {
		s.logger.Warn("Failed to purge expired sessions", zap.Error(err))
	} else if n > 0 {
		s.logger.Debug("Purged expired sessions", zap.Int64("count", n))
	}

	sess := &models.Session{
		ID:        uuid.New().String(),
		BuyerID:   buyerID,
		Phone:     digits,
		ExpiresAt: now.Add(SessionTTL),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	util.LoginAttemptsTotal.WithLabelValues("buyer", "success").Inc()
	s.logger.Info("Buyer logged in", zap.String("buyer_id", buyerID), zap.Int("orders", len(orders)))

	return &LoginResponse{Session: sess, Email: buyerID, OrderCount: len(orders)}, nil
}

// Session resolves a session token.
func (s *RegistrationService) Session(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	sess, err := s.store.GetSession(ctx, token, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

// Logout ends a session.
func (s *RegistrationService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, token)
}

// Overview lists the buyer's orders with their slots and totals.
func (s *RegistrationService) Overview(ctx context.Context, sess *models.Session) (*BuyerOverview, error) {
	ctx, span := util.StartSpan(ctx, "RegistrationService.Overview")
	defer span.End()

	summary, err := s.store.BuyerSummary(ctx, sess.BuyerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load buyer summary: %w", err)
	}

	orders, err := s.store.GetOrdersByBuyerID(ctx, sess.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	participants, err := s.store.GetParticipantsByBuyerID(ctx, sess.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	byOrder := make(map[int64][]models.Participant, len(orders))
	for _, p := range participants {
		byOrder[p.OrderID] = append(byOrder[p.OrderID], p)
	}

	overview := &BuyerOverview{
		Buyer:          *summary,
		Orders:         make([]OrderWithParticipants, 0, len(orders)),
		IsAllCompleted: summary.CompletedCount >= summary.TotalParticipants,
	}
	for _, o := range orders {
		parts := byOrder[o.ID]
		if parts == nil {
			parts = []models.Participant{}
		}
		overview.Orders = append(overview.Orders, OrderWithParticipants{Order: o, Participants: parts})
	}
	return overview, nil
}

// OrderParticipants returns one of the buyer's orders. The primary slot is
// prefilled with the buyer's phone and gender when still empty.
func (s *RegistrationService) OrderParticipants(ctx context.Context, sess *models.Session, orderID int64) (*OrderWithParticipants, error) {
	order, err := s.ownedOrder(ctx, sess, orderID)
	if err != nil {
		return nil, err
	}

	participants, err := s.store.GetParticipantsByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	for i := range participants {
		p := &participants[i]
		if !p.IsPrimary {
			continue
		}
		if p.Phone == nil {
			if digits := parser.Digits(order.BuyerPhone); digits != "" {
				p.Phone = &digits
			}
		}
		if p.Gender == nil && order.BuyerGender != nil {
			g := *order.BuyerGender
			p.Gender = &g
		}
	}

	return &OrderWithParticipants{Order: *order, Participants: participants}, nil
}

// SaveParticipant stores a complete form for one slot of the buyer's order
// and marks the slot complete.
func (s *RegistrationService) SaveParticipant(ctx context.Context, sess *models.Session, orderID int64, req ParticipantRequest) (*models.Participant, error) {
	ctx, span := util.StartSpan(ctx, "RegistrationService.SaveParticipant")
	defer span.End()

	order, err := s.ownedOrder(ctx, sess, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsCancelled {
		return nil, invalid("order", "order is cancelled")
	}

	answers, err := validateParticipant(req, order.TotalParticipants)
	if err != nil {
		return nil, err
	}

	p, err := s.store.UpsertParticipant(ctx, orderID, *req.ParticipantIndex, order.Course, answers)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.ParticipantsCompletedTotal.Inc()
	s.logger.Info("Participant saved",
		zap.Int64("order_id", orderID),
		zap.Int("participant_index", p.ParticipantIndex))

	if s.events != nil {
		evt := models.ParticipantCompletedEvent{
			OrderID:          orderID,
			ParticipantID:    p.ID,
			ParticipantIndex: p.ParticipantIndex,
			BuyerID:          sess.BuyerID,
		}
		if err := s.events.PublishParticipantCompleted(ctx, evt); err != nil {
			s.logger.Error("Failed to publish participant event", zap.Error(err))
		}
	}
	return p, nil
}

func (s *RegistrationService) ownedOrder(ctx context.Context, sess *models.Session, orderID int64) (*models.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if store.CanonicalBuyerID(order.BuyerID) != sess.BuyerID {
		return nil, ErrForbidden
	}
	return order, nil
}

func validateParticipant(req ParticipantRequest, total int) (store.ParticipantAnswers, error) {
	a := store.ParticipantAnswers{
		Name:              strings.TrimSpace(req.Name),
		Gender:            strings.ToUpper(strings.TrimSpace(req.Gender)),
		BirthDate:         strings.TrimSpace(req.BirthDate),
		Phone:             parser.Digits(req.Phone),
		TshirtSize:        strings.ToUpper(strings.TrimSpace(req.TshirtSize)),
		EmergencyContact:  parser.Digits(req.EmergencyContact),
		EmergencyRelation: strings.TrimSpace(req.EmergencyRelation),
	}

	if req.ParticipantIndex == nil {
		return a, invalid("participant_index", "required")
	}
	if idx := *req.ParticipantIndex; idx < 0 || idx >= total {
		return a, invalid("participant_index", fmt.Sprintf("must be between 0 and %d", total-1))
	}

	required := []struct{ field, value string }{
		{"name", a.Name},
		{"gender", a.Gender},
		{"birth_date", a.BirthDate},
		{"phone", a.Phone},
		{"tshirt_size", a.TshirtSize},
		{"emergency_contact", a.EmergencyContact},
		{"emergency_relation", a.EmergencyRelation},
	}
	for _, r := range required {
		if r.value == "" {
			return a, invalid(r.field, "required")
		}
	}

	if a.Gender != "M" && a.Gender != "F" {
		return a, invalid("gender", "must be M or F")
	}
	if len(a.BirthDate) != 8 || parser.Digits(a.BirthDate) != a.BirthDate {
		return a, invalid("birth_date", "must be YYYYMMDD")
	}
	return a, nil
}
