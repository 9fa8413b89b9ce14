package models

import "time"

// Event types
const (
	EventTypeIngestionCompleted   = "INGESTION_COMPLETED"
	EventTypeParticipantCompleted = "PARTICIPANT_COMPLETED"
	EventTypeOrdersCancelled      = "ORDERS_CANCELLED"
	EventTypeOrderUpdated         = "ORDER_UPDATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// IngestionCompletedEvent published after a successful ingestion run
type IngestionCompletedEvent struct {
	BaseEvent
	Rows         int `json:"rows"`
	Orders       int `json:"orders"`
	Participants int `json:"participants"`
	Completed    int `json:"completed"`
	Skipped      int `json:"skipped"`
}

// ParticipantCompletedEvent published when a buyer submits a full participant form
type ParticipantCompletedEvent struct {
	BaseEvent
	OrderID          int64  `json:"order_id"`
	ParticipantID    int64  `json:"participant_id"`
	ParticipantIndex int    `json:"participant_index"`
	BuyerID          string `json:"buyer_id"`
}

// OrdersCancelledEvent published after a bulk cancellation
type OrdersCancelledEvent struct {
	BaseEvent
	Results []CancelResult `json:"results"`
}

// OrderUpdatedEvent published when an admin edits an order
type OrderUpdatedEvent struct {
	BaseEvent
	OrderID             int64 `json:"order_id"`
	TotalParticipants   int   `json:"total_participants"`
	ParticipantsAdded   int   `json:"participants_added"`
	ParticipantsRemoved int   `json:"participants_removed"`
}
