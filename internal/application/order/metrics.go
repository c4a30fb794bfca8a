package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Metrics receives fulfilment measurements. telemetry.CheckoutMetrics
// implements it.
type Metrics interface {
	OrderCreated(ctx context.Context, paymentMethod, shippingMethod string, total decimal.Decimal)
	StockReservationFailed(ctx context.Context)
	OrderCancelled(ctx context.Context, previousStatus string)
	StockReleased(ctx context.Context, units int)
	CheckoutCompleted(ctx context.Context, d time.Duration, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) OrderCreated(context.Context, string, string, decimal.Decimal) {}
func (noopMetrics) StockReservationFailed(context.Context) {}
func (noopMetrics) OrderCancelled(context.Context, string) {}
func (noopMetrics) StockReleased(context.Context, int) {}
func (noopMetrics) CheckoutCompleted(context.Context, time.Duration, string) {}
