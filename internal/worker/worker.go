package worker

import (
	"context"

	"registration-service/internal/broker"
	"registration-service/internal/models"
	"registration-service/internal/util"

	"go.uber.org/zap"
)

// AuditStore persists audit entries.
type AuditStore interface {
	InsertAuditEntry(ctx context.Context, e models.AuditEntry) (bool, error)
}

// AuditWorker records every registration event in the audit log
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        AuditStore
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, store AuditStore) *AuditWorker {
	w := &AuditWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		store:        store,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnIngestionCompleted(func(ctx context.Context, e *models.IngestionCompletedEvent, raw []byte) error {
		return w.record(ctx, e.BaseEvent, nil, raw)
	})
	w.eventHandler.OnParticipantCompleted(func(ctx context.Context, e *models.ParticipantCompletedEvent, raw []byte) error {
		return w.record(ctx, e.BaseEvent, &e.OrderID, raw)
	})
	w.eventHandler.OnOrderUpdated(func(ctx context.Context, e *models.OrderUpdatedEvent, raw []byte) error {
		return w.record(ctx, e.BaseEvent, &e.OrderID, raw)
	})
	w.eventHandler.OnOrdersCancelled(func(ctx context.Context, e *models.OrdersCancelledEvent, raw []byte) error {
		var orderID *int64
		if len(e.Results) == 1 {
			orderID = &e.Results[0].OrderID
		}
		return w.record(ctx, e.BaseEvent, orderID, raw)
	})

	return w
}

func (w *AuditWorker) record(ctx context.Context, base models.BaseEvent, orderID *int64, raw []byte) error {
	inserted, err := w.store.InsertAuditEntry(ctx, models.AuditEntry{
		EventID:   base.EventID,
		EventType: base.EventType,
		OrderID:   orderID,
		Payload:   string(raw),
		CreatedAt: base.Timestamp,
	})
	if err != nil {
		return err
	}
	if inserted {
		util.AuditEventsTotal.WithLabelValues(base.EventType).Inc()
	} else {
		w.logger.Debug("Duplicate event ignored", zap.String("event_id", base.EventID))
	}
	return nil
}

// Handler exposes the message handler for direct delivery.
func (w *AuditWorker) Handler() broker.MessageHandler {
	return w.eventHandler.HandleMessage
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}
