package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"registration-service/internal/export"
	"registration-service/internal/models"
	"registration-service/internal/parser"
	"registration-service/internal/store"
	"registration-service/internal/util"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Order listing modes
const (
	ModeAll   = "all"
	ModeMulti = "multi"
)

// AdminSessions stores admin tokens.
type AdminSessions interface {
	CreateAdminSession(ctx context.Context, token, adminID string, ttl time.Duration) error
	AdminSession(ctx context.Context, token string) (string, error)
	DeleteAdminSession(ctx context.Context, token string) error
}

// LoginLimiter counts failed login attempts.
type LoginLimiter interface {
	RegisterLoginAttempt(ctx context.Context, realm, subject string, window time.Duration) (int64, error)
	ResetLoginAttempts(ctx context.Context, realm, subject string) error
}

// AdminEvents is notified of admin changes.
type AdminEvents interface {
	PublishOrdersCancelled(ctx context.Context, event models.OrdersCancelledEvent) error
	PublishOrderUpdated(ctx context.Context, event models.OrderUpdatedEvent) error
}

// AdminConfig holds the admin credentials and limits.
type AdminConfig struct {
	ID            string
	Password      string
	PasswordHash  string
	SessionTTL    time.Duration
	MaxAttempts   int
	AttemptWindow time.Duration
}

// AdminService handles the admin console
type AdminService struct {
	store    *store.Store
	sessions AdminSessions
	limiter  LoginLimiter
	events   AdminEvents
	archiver export.Archiver
	cfg      AdminConfig
	logger   *zap.Logger
}

// NewAdminService creates a new admin service. limiter, events and archiver
// may be nil.
func NewAdminService(
	store *store.Store,
	sessions AdminSessions,
	limiter LoginLimiter,
	events AdminEvents,
	archiver export.Archiver,
	cfg AdminConfig,
) *AdminService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 8 * time.Hour
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = 15 * time.Minute
	}
	return &AdminService{
		store:    store,
		sessions: sessions,
		limiter:  limiter,
		events:   events,
		archiver: archiver,
		cfg:      cfg,
		logger:   util.GetLogger(),
	}
}

// AdminLoginRequest is the admin login form
type AdminLoginRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks the admin credentials and issues a token.
func (s *AdminService) Login(ctx context.Context, req AdminLoginRequest) (string, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.Login")
	defer span.End()

	if s.limiter != nil && s.cfg.MaxAttempts > 0 {
		n, err := s.limiter.RegisterLoginAttempt(ctx, "admin", req.ID, s.cfg.AttemptWindow)
		if err != nil {
			s.logger.Warn("Login throttle unavailable", zap.Error(err))
		} else if n > int64(s.cfg.MaxAttempts) {
			util.LoginAttemptsTotal.WithLabelValues("admin", "throttled").Inc()
			return "", ErrTooManyTries
		}
	}

	if !s.checkCredentials(req) {
		util.LoginAttemptsTotal.WithLabelValues("admin", "bad_credentials").Inc()
		return "", ErrUnauthorized
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := s.sessions.CreateAdminSession(ctx, token, req.ID, s.cfg.SessionTTL); err != nil {
		util.RecordError(span, err)
		return "", fmt.Errorf("failed to store admin session: %w", err)
	}

	if s.limiter != nil {
		if err := s.limiter.ResetLoginAttempts(ctx, "admin", req.ID); err != nil {
			s.logger.Warn("Failed to reset login attempts", zap.Error(err))
		}
	}
	util.LoginAttemptsTotal.WithLabelValues("admin", "success").Inc()
	s.logger.Info("Admin logged in", zap.String("admin_id", req.ID))
	return token, nil
}

func (s *AdminService) checkCredentials(req AdminLoginRequest) bool {
	idOK := subtle.ConstantTimeCompare([]byte(req.ID), []byte(s.cfg.ID)) == 1
	if s.cfg.PasswordHash != "" {
		err := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(req.Password))
		return idOK && err == nil
	}
	if s.cfg.Password == "" {
		return false
	}
	pwOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.Password)) == 1
	return idOK && pwOK
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Authorize resolves an admin token to the admin id.
func (s *AdminService) Authorize(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	id, err := s.sessions.AdminSession(ctx, token)
	if err != nil {
		return "", fmt.Errorf("failed to load admin session: %w", err)
	}
	if id == "" {
		return "", ErrUnauthorized
	}
	return id, nil
}

// SessionTTL is how long an admin token stays valid.
func (s *AdminService) SessionTTL() time.Duration {
	return s.cfg.SessionTTL
}

// Logout revokes an admin token.
func (s *AdminService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteAdminSession(ctx, token)
}

// ListOrdersRequest selects a page of the admin listing
type ListOrdersRequest struct {
	Search string `form:"search"`
	Mode   string `form:"mode"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}

// OrderListResponse is one page of orders (all mode) or buyers (multi mode)
type OrderListResponse struct {
	Mode       string                 `json:"mode"`
	Orders     []models.OrderListItem `json:"orders,omitempty"`
	Buyers     []models.BuyerSummary  `json:"buyers,omitempty"`
	Total      int                    `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	MultiStats models.MultiStats      `json:"multi_stats"`
}

// ListOrders returns one page of the admin listing.
func (s *AdminService) ListOrders(ctx context.Context, req ListOrdersRequest) (*OrderListResponse, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.ListOrders")
	defer span.End()

	mode := req.Mode
	if mode == "" {
		mode = ModeAll
	}
	if mode != ModeAll && mode != ModeMulti {
		return nil, invalid("mode", "must be all or multi")
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	filter := store.OrderFilter{Search: req.Search, Limit: limit, Offset: (page - 1) * limit}

	resp := &OrderListResponse{Mode: mode, Page: page, Limit: limit}
	var err error
	if mode == ModeMulti {
		resp.Buyers, resp.Total, err = s.store.ListMultiBuyers(ctx, filter)
	} else {
		resp.Orders, resp.Total, err = s.store.ListOrders(ctx, filter)
	}
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	resp.MultiStats, err = s.store.MultiStats(ctx)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Stats returns the dashboard totals.
func (s *AdminService) Stats(ctx context.Context) (models.DashboardStats, error) {
	return s.store.Stats(ctx)
}

// OrderDetail is one order with the rest of its buyer's orders
type OrderDetail struct {
	Order         models.Order            `json:"order"`
	Participants  []models.Participant    `json:"participants"`
	RelatedOrders []OrderWithParticipants `json:"related_orders"`
	Buyer         models.BuyerSummary     `json:"buyer"`
}

// OrderDetail loads an order, its slots, and every order of the same buyer.
func (s *AdminService) OrderDetail(ctx context.Context, id int64) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.OrderDetail")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	related, err := s.store.GetOrdersByBuyerID(ctx, order.BuyerID)
	if err != nil {
		return nil, err
	}
	participants, err := s.store.GetParticipantsByBuyerID(ctx, order.BuyerID)
	if err != nil {
		return nil, err
	}
	summary, err := s.store.BuyerSummary(ctx, order.BuyerID)
	if err != nil {
		return nil, err
	}

	byOrder := map[int64][]models.Participant{}
	for _, p := range participants {
		byOrder[p.OrderID] = append(byOrder[p.OrderID], p)
	}

	detail := &OrderDetail{
		Order:         *order,
		Participants:  byOrder[order.ID],
		RelatedOrders: make([]OrderWithParticipants, 0, len(related)),
		Buyer:         *summary,
	}
	if detail.Participants == nil {
		detail.Participants = []models.Participant{}
	}
	for _, o := range related {
		parts := byOrder[o.ID]
		if parts == nil {
			parts = []models.Participant{}
		}
		detail.RelatedOrders = append(detail.RelatedOrders, OrderWithParticipants{Order: o, Participants: parts})
	}
	return detail, nil
}

// UpdateOrderRequest is an admin order correction
type UpdateOrderRequest struct {
	BuyerName         string  `json:"buyer_name"`
	BuyerEmail        string  `json:"buyer_email"`
	BuyerPhone        string  `json:"buyer_phone"`
	BuyerGender       *string `json:"buyer_gender"`
	Course            string  `json:"course"`
	TotalParticipants int     `json:"total_participants"`
	RecipientName     string  `json:"recipient_name"`
	RecipientPhone    string  `json:"recipient_phone"`
	Zipcode           string  `json:"zipcode"`
	Address           string  `json:"address"`
	AddressDetail     string  `json:"address_detail"`
}

// UpdateOrder applies an admin correction. Changing total_participants
// adds or removes slots in the same transaction.
func (s *AdminService) UpdateOrder(ctx context.Context, id int64, req UpdateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.UpdateOrder")
	defer span.End()

	if strings.TrimSpace(req.BuyerEmail) == "" {
		return nil, invalid("buyer_email", "required")
	}
	if req.TotalParticipants < 1 {
		return nil, invalid("total_participants", "must be at least 1")
	}
	if req.Course != "" && !parser.ValidCourse(req.Course) {
		return nil, invalid("course", "unknown course")
	}
	gender, err := normalizeGender(req.BuyerGender)
	if err != nil {
		return nil, invalid("buyer_gender", err.Error())
	}

	update := store.OrderUpdate{
		BuyerName:         strings.TrimSpace(req.BuyerName),
		BuyerEmail:        req.BuyerEmail,
		BuyerPhone:        parser.NormalizePhone(req.BuyerPhone),
		BuyerGender:       gender,
		Course:            req.Course,
		TotalParticipants: req.TotalParticipants,
		RecipientName:     strings.TrimSpace(req.RecipientName),
		RecipientPhone:    parser.NormalizePhone(req.RecipientPhone),
		Zipcode:           strings.TrimSpace(req.Zipcode),
		Address:           strings.TrimSpace(req.Address),
		AddressDetail:     strings.TrimSpace(req.AddressDetail),
	}
	resync, err := s.store.UpdateOrder(ctx, id, update)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Order updated",
		zap.Int64("order_id", id),
		zap.Int("total_participants", req.TotalParticipants),
		zap.Int("participants_added", resync.Added),
		zap.Int("participants_removed", resync.Removed))

	if s.events != nil {
		evt := models.OrderUpdatedEvent{
			OrderID:             id,
			TotalParticipants:   req.TotalParticipants,
			ParticipantsAdded:   resync.Added,
			ParticipantsRemoved: resync.Removed,
		}
		if err := s.events.PublishOrderUpdated(ctx, evt); err != nil {
			s.logger.Error("Failed to publish order event", zap.Error(err))
		}
	}
	return s.store.GetOrderByID(ctx, id)
}

// UpdateParticipantRequest is an admin participant override. Empty strings
// clear a field.
type UpdateParticipantRequest struct {
	Name              *string `json:"name"`
	Gender            *string `json:"gender"`
	BirthDate         *string `json:"birth_date"`
	Phone             *string `json:"phone"`
	Course            string  `json:"course"`
	TshirtSize        *string `json:"tshirt_size"`
	EmergencyContact  *string `json:"emergency_contact"`
	EmergencyRelation *string `json:"emergency_relation"`
	IsCompleted       bool    `json:"is_completed"`
}

// UpdateParticipant overrides a participant, completion flag included.
func (s *AdminService) UpdateParticipant(ctx context.Context, id int64, req UpdateParticipantRequest) (*models.Participant, error) {
	current, err := s.store.GetParticipantByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	course := req.Course
	if course == "" {
		course = current.Course
	} else if !parser.ValidCourse(course) {
		return nil, invalid("course", "unknown course")
	}
	gender, err := normalizeGender(req.Gender)
	if err != nil {
		return nil, invalid("gender", err.Error())
	}

	update := store.ParticipantUpdate{
		Name:              trimmed(req.Name),
		Gender:            gender,
		BirthDate:         trimmed(req.BirthDate),
		Phone:             digitsOrNil(req.Phone),
		Course:            course,
		TshirtSize:        upperOrNil(req.TshirtSize),
		EmergencyContact:  digitsOrNil(req.EmergencyContact),
		EmergencyRelation: trimmed(req.EmergencyRelation),
		IsCompleted:       req.IsCompleted,
	}
	p, err := s.store.UpdateParticipant(ctx, id, update)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("Participant overridden", zap.Int64("participant_id", id), zap.Bool("is_completed", p.IsCompleted))
	return p, nil
}

// CancelOrdersRequest lists the orders to cancel
type CancelOrdersRequest struct {
	OrderIDs []int64 `json:"order_ids" binding:"required,min=1"`
}

// CancelOrders cancels each order on its own. One failing order does not
// undo the others; repeating the call changes nothing. When storage fails
// mid-batch the results processed so far are returned with the error and
// still announced.
func (s *AdminService) CancelOrders(ctx context.Context, ids []int64) ([]models.CancelResult, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.CancelOrders")
	defer span.End()

	if len(ids) == 0 {
		return nil, invalid("order_ids", "required")
	}

	var failed error
	results := make([]models.CancelResult, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		res, err := s.store.CancelOrder(ctx, id)
		if err != nil {
			util.RecordError(span, err)
			s.logger.Error("Failed to cancel order", zap.Int64("order_id", id), zap.Error(err))
			failed = fmt.Errorf("failed to cancel order %d: %w", id, err)
			break
		}
		util.OrdersCancelledTotal.WithLabelValues(res.Status).Inc()
		results = append(results, res)
	}

	s.logger.Info("Orders cancelled",
		zap.Int("requested", len(ids)),
		zap.Int("processed", len(results)),
		zap.Bool("complete", failed == nil))

	if s.events != nil && len(results) > 0 {
		if err := s.events.PublishOrdersCancelled(ctx, models.OrdersCancelledEvent{Results: results}); err != nil {
			s.logger.Error("Failed to publish cancellation event", zap.Error(err))
		}
	}
	return results, failed
}

// ExportFile is a rendered export
type ExportFile struct {
	Name        string
	ContentType string
	Body        []byte
	ArchiveURL  string
}

// Export renders every participant row, or only multi-entry buyers' rows,
// as xlsx or csv. With an archiver configured the file is also uploaded.
func (s *AdminService) Export(ctx context.Context, mode, format string) (*ExportFile, error) {
	ctx, span := util.StartSpan(ctx, "AdminService.Export")
	defer span.End()

	if mode == "" {
		mode = ModeAll
	}
	if mode != ModeAll && mode != ModeMulti {
		return nil, invalid("filter", "must be all or multi")
	}
	if format == "" {
		format = export.FormatXLSX
	}
	if format != export.FormatXLSX && format != export.FormatCSV {
		return nil, invalid("format", "must be xlsx or csv")
	}

	rows, err := s.store.ExportRows(ctx, mode == ModeMulti)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	body, err := export.Render(rows, format)
	if err != nil {
		return nil, err
	}

	file := &ExportFile{
		Name:        export.FileName(mode, format, time.Now()),
		ContentType: export.ContentType(format),
		Body:        body,
	}
	if s.archiver != nil {
		url, err := s.archiver.Upload(ctx, file.Name, body, file.ContentType)
		if err != nil {
			s.logger.Warn("Failed to archive export", zap.String("file", file.Name), zap.Error(err))
		} else {
			file.ArchiveURL = url
		}
	}

	s.logger.Info("Export rendered", zap.String("mode", mode), zap.String("format", format), zap.Int("rows", len(rows)))
	return file, nil
}

// AuditLog returns recorded events, optionally for one order.
func (s *AdminService) AuditLog(ctx context.Context, orderID *int64, limit int) ([]models.AuditEntry, error) {
	return s.store.ListAuditEntries(ctx, orderID, limit)
}

func normalizeGender(g *string) (*string, error) {
	if g == nil {
		return nil, nil
	}
	v := strings.ToUpper(strings.TrimSpace(*g))
	switch v {
	case "":
		return nil, nil
	case "M", "F":
		return &v, nil
	}
	return nil, errors.New("must be M or F")
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func upperOrNil(s *string) *string {
	v := trimmed(s)
	if v == nil {
		return nil
	}
	u := strings.ToUpper(*v)
	return &u
}

func digitsOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	d := parser.Digits(*s)
	if d == "" {
		return nil
	}
	return &d
}
