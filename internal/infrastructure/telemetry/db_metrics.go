package telemetry

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RegisterDBPoolMetrics observes the connection pool on every collection.
// Checkout holds a connection for the whole reservation transaction, so
// in_use and wait_count are the first signals of stock contention.
func RegisterDBPoolMetrics(meter metric.Meter, stats func() sql.DBStats) (metric.Registration, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	connections, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Connections in the pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	maxOpen, err := meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum number of open connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	waits, err := meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Total number of connections waited for"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return nil, err
	}
	waitTime, err := meter.Float64ObservableCounter("db_pool_wait_seconds_total",
		metric.WithDescription("Total time blocked waiting for a connection"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	inUse := metric.WithAttributes(attribute.String("state", "in_use"))
	idle := metric.WithAttributes(attribute.String("state", "idle"))

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(connections, int64(s.InUse), inUse)
		o.ObserveInt64(connections, int64(s.Idle), idle)
		o.ObserveInt64(maxOpen, int64(s.MaxOpenConnections))
		o.ObserveInt64(waits, s.WaitCount)
		o.ObserveFloat64(waitTime, s.WaitDuration.Seconds())
		return nil
	}, connections, maxOpen, waits, waitTime)
}
