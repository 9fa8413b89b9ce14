package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"registration-service/internal/models"
	"registration-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBase(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

func orderKey(id int64) string {
	return fmt.Sprintf("order-%d", id)
}

// PublishIngestionCompleted publishes IngestionCompleted event
func (ep *EventPublisher) PublishIngestionCompleted(ctx context.Context, event models.IngestionCompletedEvent) error {
	event.BaseEvent = newBase(models.EventTypeIngestionCompleted)
	return ep.producer.PublishEvent(ctx, "ingestion", event)
}

// PublishParticipantCompleted publishes ParticipantCompleted event
func (ep *EventPublisher) PublishParticipantCompleted(ctx context.Context, event models.ParticipantCompletedEvent) error {
	event.BaseEvent = newBase(models.EventTypeParticipantCompleted)
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrdersCancelled publishes OrdersCancelled event
func (ep *EventPublisher) PublishOrdersCancelled(ctx context.Context, event models.OrdersCancelledEvent) error {
	event.BaseEvent = newBase(models.EventTypeOrdersCancelled)
	return ep.producer.PublishEvent(ctx, "cancellation", event)
}

// PublishOrderUpdated publishes OrderUpdated event
func (ep *EventPublisher) PublishOrderUpdated(ctx context.Context, event models.OrderUpdatedEvent) error {
	event.BaseEvent = newBase(models.EventTypeOrderUpdated)
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// EventHandler routes incoming events by type
type EventHandler struct {
	onIngestionCompleted   func(context.Context, *models.IngestionCompletedEvent, []byte) error
	onParticipantCompleted func(context.Context, *models.ParticipantCompletedEvent, []byte) error
	onOrdersCancelled      func(context.Context, *models.OrdersCancelledEvent, []byte) error
	onOrderUpdated         func(context.Context, *models.OrderUpdatedEvent, []byte) error
	logger                 *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnIngestionCompleted registers a handler for IngestionCompleted events.
// Handlers also receive the raw message payload.
func (eh *EventHandler) OnIngestionCompleted(h func(context.Context, *models.IngestionCompletedEvent, []byte) error) {
	eh.onIngestionCompleted = h
}

// OnParticipantCompleted registers a handler for ParticipantCompleted events
func (eh *EventHandler) OnParticipantCompleted(h func(context.Context, *models.ParticipantCompletedEvent, []byte) error) {
	eh.onParticipantCompleted = h
}

// OnOrdersCancelled registers a handler for OrdersCancelled events
func (eh *EventHandler) OnOrdersCancelled(h func(context.Context, *models.OrdersCancelledEvent, []byte) error) {
	eh.onOrdersCancelled = h
}

// OnOrderUpdated registers a handler for OrderUpdated events
func (eh *EventHandler) OnOrderUpdated(h func(context.Context, *models.OrderUpdatedEvent, []byte) error) {
	eh.onOrderUpdated = h
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType), zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeIngestionCompleted:
		if eh.onIngestionCompleted != nil {
			var event models.IngestionCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal IngestionCompleted event: %w", err)
			}
			return eh.onIngestionCompleted(ctx, &event, msg.Value)
		}

	case models.EventTypeParticipantCompleted:
		if eh.onParticipantCompleted != nil {
			var event models.ParticipantCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ParticipantCompleted event: %w", err)
			}
			return eh.onParticipantCompleted(ctx, &event, msg.Value)
		}

	case models.EventTypeOrdersCancelled:
		if eh.onOrdersCancelled != nil {
			var event models.OrdersCancelledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrdersCancelled event: %w", err)
			}
			return eh.onOrdersCancelled(ctx, &event, msg.Value)
		}

	case models.EventTypeOrderUpdated:
		if eh.onOrderUpdated != nil {
			var event models.OrderUpdatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderUpdated event: %w", err)
			}
			return eh.onOrderUpdated(ctx, &event, msg.Value)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
