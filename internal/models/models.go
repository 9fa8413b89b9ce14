package models

import "time"

// MultiBuyerThreshold is the aggregate participant count at which a buyer
// identity counts as a multi-entry buyer.
const MultiBuyerThreshold = 2

// Order represents one purchase transaction from the shop export
type Order struct {
	ID                int64      `db:"id" json:"id"`
	BuyerID           string     `db:"buyer_id" json:"buyer_id"`
	BuyerEmail        string     `db:"buyer_email" json:"buyer_email"`
	BuyerName         string     `db:"buyer_name" json:"buyer_name"`
	BuyerPhone        string     `db:"buyer_phone" json:"buyer_phone"`
	BuyerGender       *string    `db:"buyer_gender" json:"buyer_gender"`
	TotalParticipants int        `db:"total_participants" json:"total_participants"`
	ProductName       string     `db:"product_name" json:"product_name"`
	Course            string     `db:"course" json:"course"`
	OptionRaw         string     `db:"option_raw" json:"option_raw"`
	RecipientName     string     `db:"recipient_name" json:"recipient_name"`
	RecipientPhone    string     `db:"recipient_phone" json:"recipient_phone"`
	Zipcode           string     `db:"zipcode" json:"zipcode"`
	Address           string     `db:"address" json:"address"`
	AddressDetail     string     `db:"address_detail" json:"address_detail"`
	TotalAmount       int64      `db:"total_amount" json:"total_amount"`
	IsCancelled       bool       `db:"is_cancelled" json:"is_cancelled"`
	CancelledAt       *time.Time `db:"cancelled_at" json:"cancelled_at"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// Participant is one registrant slot of an order. Index 0 is the buyer.
type Participant struct {
	ID                int64     `db:"id" json:"id"`
	OrderID           int64     `db:"order_id" json:"order_id"`
	ParticipantIndex  int       `db:"participant_index" json:"participant_index"`
	Name              *string   `db:"name" json:"name"`
	Gender            *string   `db:"gender" json:"gender"`
	BirthDate         *string   `db:"birth_date" json:"birth_date"`
	Phone             *string   `db:"phone" json:"phone"`
	Course            string    `db:"course" json:"course"`
	TshirtSize        *string   `db:"tshirt_size" json:"tshirt_size"`
	EmergencyContact  *string   `db:"emergency_contact" json:"emergency_contact"`
	EmergencyRelation *string   `db:"emergency_relation" json:"emergency_relation"`
	OptionRaw         string    `db:"option_raw" json:"option_raw"`
	IsPrimary         bool      `db:"is_primary" json:"is_primary"`
	IsCompleted       bool      `db:"is_completed" json:"is_completed"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// BuyerSummary is the derived aggregate of all orders sharing a buyer_id.
// It is computed per query and never stored.
type BuyerSummary struct {
	BuyerID           string  `db:"buyer_id" json:"buyer_id"`
	BuyerName         string  `db:"buyer_name" json:"buyer_name"`
	BuyerPhone        string  `db:"buyer_phone" json:"buyer_phone"`
	BuyerGender       *string `db:"buyer_gender" json:"buyer_gender"`
	OrderCount        int     `db:"order_count" json:"order_count"`
	TotalParticipants int     `db:"total_participants" json:"total_participants"`
	CompletedCount    int     `db:"completed_count" json:"completed_count"`
	TotalAmount       int64   `db:"total_amount" json:"total_amount"`
}

// IsMulti reports whether the buyer registered two or more participants.
func (b BuyerSummary) IsMulti() bool {
	return b.TotalParticipants >= MultiBuyerThreshold
}

// OrderListItem is an order row of the admin listing with its per-order and
// per-buyer counts.
type OrderListItem struct {
	Order
	ParticipantCount       int `db:"participant_count" json:"participant_count"`
	CompletedCount         int `db:"completed_count" json:"completed_count"`
	BuyerTotalParticipants int `db:"buyer_total_participants" json:"buyer_total_participants"`
	BuyerCompletedCount    int `db:"buyer_completed_count" json:"buyer_completed_count"`
}

// MultiStats aggregates every multi-entry buyer.
type MultiStats struct {
	Buyers                int `db:"multi_buyers" json:"multi_buyers"`
	TotalParticipants     int `db:"multi_total_participants" json:"multi_total_participants"`
	CompletedParticipants int `db:"multi_completed_participants" json:"multi_completed_participants"`
}

// DashboardStats backs the admin dashboard.
type DashboardStats struct {
	TotalOrders           int `db:"total_orders" json:"total_orders"`
	TotalParticipants     int `db:"total_participants" json:"total_participants"`
	CompletedParticipants int `db:"completed_participants" json:"completed_participants"`
	MultiStats
}

// Session is a buyer self-service login
type Session struct {
	ID        string    `db:"id" json:"id"`
	BuyerID   string    `db:"buyer_id" json:"buyer_id"`
	Phone     string    `db:"phone" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AuditEntry is a registration event recorded by the audit worker
type AuditEntry struct {
	EventID   string    `db:"event_id" json:"event_id"`
	EventType string    `db:"event_type" json:"event_type"`
	OrderID   *int64    `db:"order_id" json:"order_id"`
	Payload   string    `db:"payload" json:"payload"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Cancellation outcomes
const (
	CancelStatusCancelled        = "cancelled"
	CancelStatusAlreadyCancelled = "already_cancelled"
	CancelStatusNotFound         = "not_found"
)

// CancelResult reports what happened to one order of a bulk cancellation
type CancelResult struct {
	OrderID        int64  `json:"order_id"`
	Status         string `json:"status"`
	OriginalAmount int64  `json:"original_amount,omitempty"`
	NewAmount      int64  `json:"new_amount,omitempty"`
}

// OrderDraft is a materialized order with its participant slots, not yet
// persisted. Participant OrderID is filled in on insert.
type OrderDraft struct {
	Order        Order
	Participants []Participant
}

// ExportRow is one participant (or one participant-less order) of the
// denormalized export.
type ExportRow struct {
	OrderID                int64   `db:"order_id"`
	BuyerName              string  `db:"buyer_name"`
	BuyerEmail             string  `db:"buyer_email"`
	BuyerPhone             string  `db:"buyer_phone"`
	BuyerGender            *string `db:"buyer_gender"`
	Course                 string  `db:"course"`
	TotalParticipants      int     `db:"total_participants"`
	BuyerTotalParticipants int     `db:"buyer_total_participants"`
	TotalAmount            int64   `db:"total_amount"`
	IsCancelled            bool    `db:"is_cancelled"`
	RecipientName          string  `db:"recipient_name"`
	RecipientPhone         string  `db:"recipient_phone"`
	Zipcode                string  `db:"zipcode"`
	Address                string  `db:"address"`
	AddressDetail          string  `db:"address_detail"`
	ParticipantIndex       *int    `db:"participant_index"`
	Name                   *string `db:"name"`
	Gender                 *string `db:"gender"`
	BirthDate              *string `db:"birth_date"`
	Phone                  *string `db:"phone"`
	ParticipantCourse      *string `db:"participant_course"`
	TshirtSize             *string `db:"tshirt_size"`
	EmergencyContact       *string `db:"emergency_contact"`
	EmergencyRelation      *string `db:"emergency_relation"`
	IsPrimary              *bool   `db:"is_primary"`
	IsCompleted            *bool   `db:"is_completed"`
}
