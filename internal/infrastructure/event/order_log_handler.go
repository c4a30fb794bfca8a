package event

import (
	"context"

	"github.com/rouna/storefront/internal/domain/order"
	"github.com/rouna/storefront/internal/domain/shared"
	"go.uber.org/zap"
)

// OrderLogHandler writes every order lifecycle event to the structured log
// as an audit trail. The payload is the serialized event.
type OrderLogHandler struct {
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewOrderLogHandler creates an order audit log handler
func NewOrderLogHandler(serializer *EventSerializer, logger *zap.Logger) *OrderLogHandler {
	return &OrderLogHandler{serializer: serializer, logger: logger}
}

// EventTypes returns the order event types
func (h *OrderLogHandler) EventTypes() []string {
	return []string{
		order.EventTypeOrderCreated,
		order.EventTypeOrderCancelled,
		order.EventTypeOrderStatusChanged,
	}
}

// Handle logs the event
func (h *OrderLogHandler) Handle(_ context.Context, ev shared.DomainEvent) error {
	payload, err := h.serializer.Serialize(ev)
	if err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("event_id", ev.EventID().String()),
		zap.String("event_type", ev.EventType()),
		zap.String("order_id", ev.AggregateID().String()),
		zap.Time("occurred_at", ev.OccurredAt()),
		zap.ByteString("payload", payload),
	}
	switch e := ev.(type) {
	case *order.OrderCreatedEvent:
		fields = append(fields, zap.String("order_number", e.OrderNumber), zap.String("total", e.Total.StringFixed(2)))
	case *order.OrderCancelledEvent:
		fields = append(fields, zap.String("order_number", e.OrderNumber), zap.String("previous_status", string(e.PreviousStatus)))
	case *order.OrderStatusChangedEvent:
		fields = append(fields, zap.String("from", string(e.From)), zap.String("to", string(e.To)))
	}

	h.logger.Info("order event", fields...)
	return nil
}

var _ shared.EventHandler = (*OrderLogHandler)(nil)
