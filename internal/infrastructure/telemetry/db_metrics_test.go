package telemetry

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRegisterDBPoolMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	stats := sql.DBStats{
		MaxOpenConnections: 25,
		InUse:              7,
		Idle:               3,
		WaitCount:          12,
		WaitDuration:       1500 * time.Millisecond,
	}
	reg, err := RegisterDBPoolMetrics(mp.Meter("test"), func() sql.DBStats { return stats })
	require.NoError(t, err)
	defer reg.Unregister()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byName := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			byName[md.Name] = md.Data
		}
	}

	conns := byName["db_pool_connections"].(metricdata.Gauge[int64])
	byState := map[string]int64{}
	for _, dp := range conns.DataPoints {
		state, _ := dp.Attributes.Value("state")
		byState[state.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"in_use": 7, "idle": 3}, byState)

	maxOpen := byName["db_pool_connections_max"].(metricdata.Gauge[int64])
	require.Len(t, maxOpen.DataPoints, 1)
	assert.Equal(t, int64(25), maxOpen.DataPoints[0].Value)

	waits := byName["db_pool_wait_total"].(metricdata.Sum[int64])
	require.Len(t, waits.DataPoints, 1)
	assert.Equal(t, int64(12), waits.DataPoints[0].Value)

	waited := byName["db_pool_wait_seconds_total"].(metricdata.Sum[float64])
	require.Len(t, waited.DataPoints, 1)
	assert.InDelta(t, 1.5, waited.DataPoints[0].Value, 0.0001)
}

func TestRegisterDBPoolMetrics_NilMeter(t *testing.T) {
	_, err := RegisterDBPoolMetrics(nil, func() sql.DBStats { return sql.DBStats{} })
	assert.ErrorIs(t, err, ErrMeterNil)
}
