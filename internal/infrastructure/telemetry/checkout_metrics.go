package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrPaymentMethod  = attribute.Key("payment_method")
	AttrShippingMethod = attribute.Key("shipping_method")
	AttrOutcome        = attribute.Key("outcome")
	AttrPreviousStatus = attribute.Key("previous_status")
)

// Checkout outcomes reported on storefront_checkout_duration_seconds
const (
	OutcomeSuccess           = "success"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeRejected          = "rejected"
	OutcomeError             = "error"
)

// CheckoutMetrics records order fulfilment activity.
type CheckoutMetrics struct {
	ordersCreated  metric.Int64Counter
	orderAmount    metric.Float64Counter
	stockFailures  metric.Int64Counter
	cancellations  metric.Int64Counter
	stockReleased  metric.Int64Counter
	checkoutTiming metric.Float64Histogram
}

// NewCheckoutMetrics creates the checkout instruments on meter
func NewCheckoutMetrics(meter metric.Meter) (*CheckoutMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   CheckoutMetrics
		err error
	)
	if m.ordersCreated, err = meter.Int64Counter("storefront_orders_created_total",
		metric.WithDescription("Orders placed through checkout"), metric.WithUnit("{orders}")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.orderAmount, err = meter.Float64Counter("storefront_order_amount_total",
		metric.WithDescription("Sum of order totals"), metric.WithUnit("{currency}")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.stockFailures, err = meter.Int64Counter("storefront_stock_reservation_failures_total",
		metric.WithDescription("Checkouts rejected for insufficient stock"), metric.WithUnit("{failures}")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.cancellations, err = meter.Int64Counter("storefront_orders_cancelled_total",
		metric.WithDescription("Orders cancelled"), metric.WithUnit("{orders}")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.stockReleased, err = meter.Int64Counter("storefront_stock_released_units_total",
		metric.WithDescription("Units returned to stock by cancellations and returns"), metric.WithUnit("{units}")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.checkoutTiming, err = meter.Float64Histogram("storefront_checkout_duration_seconds",
		metric.WithDescription("Checkout latency"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(CheckoutDurationBuckets...)); err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}
	return &m, nil
}

// OrderCreated records a placed order
func (m *CheckoutMetrics) OrderCreated(ctx context.Context, paymentMethod, shippingMethod string, total decimal.Decimal) {
	attrs := metric.WithAttributes(AttrPaymentMethod.String(paymentMethod), AttrShippingMethod.String(shippingMethod))
	m.ordersCreated.Add(ctx, 1, attrs)
	m.orderAmount.Add(ctx, total.InexactFloat64(), attrs)
}

// StockReservationFailed records a checkout rejected by the stock ledger
func (m *CheckoutMetrics) StockReservationFailed(ctx context.Context) {
	m.stockFailures.Add(ctx, 1)
}

// OrderCancelled records a cancellation
func (m *CheckoutMetrics) OrderCancelled(ctx context.Context, previousStatus string) {
	m.cancellations.Add(ctx, 1, metric.WithAttributes(AttrPreviousStatus.String(previousStatus)))
}

// StockReleased records units put back on the shelf
func (m *CheckoutMetrics) StockReleased(ctx context.Context, units int) {
	m.stockReleased.Add(ctx, int64(units))
}

// CheckoutCompleted records checkout latency by outcome
func (m *CheckoutMetrics) CheckoutCompleted(ctx context.Context, d time.Duration, outcome string) {
	m.checkoutTiming.Record(ctx, d.Seconds(), metric.WithAttributes(AttrOutcome.String(outcome)))
}
