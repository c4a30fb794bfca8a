package event

import "github.com/rouna/storefront/internal/domain/order"

// RegisterOrderEvents registers the order event types with the serializer
func RegisterOrderEvents(serializer *EventSerializer) {
	serializer.Register(order.EventTypeOrderCreated, &order.OrderCreatedEvent{})
	serializer.Register(order.EventTypeOrderCancelled, &order.OrderCancelledEvent{})
	serializer.Register(order.EventTypeOrderStatusChanged, &order.OrderStatusChangedEvent{})
}
