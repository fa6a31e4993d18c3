package ingest

import (
	"context"
	"encoding/json"
	"time"

	"example.com/resto/services/kitchen/internal/kitchen"
	"example.com/resto/services/kitchen/internal/metrics"
	"example.com/resto/services/kitchen/internal/models"
	"example.com/resto/services/kitchen/internal/tracing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notifier publishes an order change so running kitchen boards refresh.
type Notifier interface {
	NotifyChange(ctx context.Context, orderID string) error
}

// OrderEvent is the payload of an online-order event from the ordering
// platform.
type OrderEvent struct {
	ExternalRef  string             `json:"external_ref"`
	Status       string             `json:"status"`
	OrderType    string             `json:"order_type"`
	CustomerName string             `json:"customer_name"`
	Items        []kitchen.ItemLine `json:"items"`
	TotalAmount  int32              `json:"total_amount"`
	PlacedAt     time.Time          `json:"placed_at"`
	ScheduledFor *time.Time         `json:"scheduled_for"`
}

// Service ingests online-order events into the order table and keeps
// overdue orders flagged.
type Service struct {
	db       *gorm.DB
	notifier Notifier
	tracer   tracing.Tracer
	metrics  *metrics.Metrics
}

// NewService creates the ingest service.
func NewService(db *gorm.DB, notifier Notifier, tracer tracing.Tracer, m *metrics.Metrics) *Service {
	if m == nil {
		m = metrics.New()
	}
	return &Service{
		db:       db,
		notifier: notifier,
		tracer:   tracer,
		metrics:  m,
	}
}

// ProcessOrderMessage handles one online-order event from the Service
// Bus queue: upsert the order row, then notify running boards.
func (s *Service) ProcessOrderMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	txn := s.tracer.StartTransaction("ingest-online-order")
	defer s.tracer.EndTransaction(txn)

	event, err := ExtractOrderEvent(message)
	if err != nil {
		s.tracer.RecordError(txn, err)
		s.metrics.RecordError("ingest_message")
		return errors.Wrap(err, "failed to extract order event")
	}

	span := s.tracer.StartSpan("upsert-online-order", txn)
	order, err := s.UpsertOrder(ctx, event)
	span.End()

	if err != nil {
		s.tracer.RecordError(txn, err)
		s.metrics.RecordError("ingest_message")
		return err
	}

	s.metrics.RecordSuccess("ingest_message")

	log.Info().
		Str("order_id", order.ID.String()).
		Str("external_ref", order.ExternalRef).
		Str("status", order.Status).
		Msg("Online order ingested")

	if err := s.notifier.NotifyChange(ctx, order.ID.String()); err != nil {
		// The board still catches up on its periodic refresh.
		log.Warn().Err(err).Str("order_id", order.ID.String()).Msg("Failed to publish change notification")
	}

	return nil
}

// UpsertOrder creates or updates the order row keyed by external
// reference. Events may arrive out of order or duplicated; the row
// always reflects the latest received state.
func (s *Service) UpsertOrder(ctx context.Context, event *OrderEvent) (*models.OnlineOrder, error) {
	if event.ExternalRef == "" {
		return nil, errors.New("order event missing external_ref")
	}

	items, err := json.Marshal(event.Items)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal order items")
	}

	order := &models.OnlineOrder{
		ID:           uuid.New(),
		ExternalRef:  event.ExternalRef,
		Status:       event.Status,
		OrderType:    event.OrderType,
		CustomerName: event.CustomerName,
		Items:        items,
		TotalAmount:  event.TotalAmount,
		PlacedAt:     event.PlacedAt,
		ScheduledFor: event.ScheduledFor,
	}
	if order.PlacedAt.IsZero() {
		order.PlacedAt = time.Now()
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_ref"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "order_type", "customer_name", "items", "total_amount", "scheduled_for", "updated_at"}),
		}).
		Create(order).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert online order")
	}

	// On conflict the generated id is discarded; read the row back so
	// the notification carries the real id.
	var stored models.OnlineOrder
	if err := s.db.WithContext(ctx).Where("external_ref = ?", event.ExternalRef).First(&stored).Error; err != nil {
		return nil, errors.Wrap(err, "failed to read back upserted order")
	}

	return &stored, nil
}

// SweepOverdueOrders flags online orders still pending or preparing past
// their promise time as delayed, and notifies boards once if anything
// changed.
func (s *Service) SweepOverdueOrders(ctx context.Context) error {
	txn := s.tracer.StartTransaction("sweep-overdue-orders")
	defer s.tracer.EndTransaction(txn)

	result := s.db.WithContext(ctx).
		Model(&models.OnlineOrder{}).
		Where("status IN ? AND scheduled_for IS NOT NULL AND scheduled_for < ?",
			[]string{"confirmed", "preparing"}, time.Now()).
		Update("status", "delayed")
	if result.Error != nil {
		s.tracer.RecordError(txn, result.Error)
		return errors.Wrap(result.Error, "failed to sweep overdue orders")
	}

	if result.RowsAffected == 0 {
		return nil
	}

	log.Info().Int64("count", result.RowsAffected).Msg("Flagged overdue online orders as delayed")
	s.metrics.IncrementCounter("ingest_delayed_sweeps")

	if err := s.notifier.NotifyChange(ctx, "sweep"); err != nil {
		log.Warn().Err(err).Msg("Failed to publish change notification after sweep")
	}

	return nil
}

// ExtractOrderEvent extracts an order event from a message envelope.
func ExtractOrderEvent(message *azservicebus.ReceivedMessage) (*OrderEvent, error) {
	var envelope struct {
		EventType string          `json:"event_type"`
		Payload   json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(message.Body, &envelope); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal message envelope")
	}

	var event OrderEvent
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal order payload")
	}

	return &event, nil
}
