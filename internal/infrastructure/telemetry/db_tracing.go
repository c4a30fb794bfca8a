package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL keeps bound variables in span statements (development only)
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBName          string
}

type queryStartKey struct{}

// RegisterDBTracing installs the otelgorm plugin on db, plus callbacks that
// flag slow statements and record rows affected on the span.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := registerQueryTiming(db, cfg.SlowQueryThresh); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func registerQueryTiming(db *gorm.DB, threshold time.Duration) error {
	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) {
		annotateQuerySpan(tx, threshold)
	}

	cb := db.Callback()
	steps := []error{
		cb.Create().Before("gorm:create").Register("storefront:timing_before_create", before),
		cb.Create().After("gorm:create").Register("storefront:timing_after_create", after),
		cb.Query().Before("gorm:query").Register("storefront:timing_before_query", before),
		cb.Query().After("gorm:query").Register("storefront:timing_after_query", after),
		cb.Update().Before("gorm:update").Register("storefront:timing_before_update", before),
		cb.Update().After("gorm:update").Register("storefront:timing_after_update", after),
		cb.Delete().Before("gorm:delete").Register("storefront:timing_before_delete", before),
		cb.Delete().After("gorm:delete").Register("storefront:timing_after_delete", after),
		cb.Row().Before("gorm:row").Register("storefront:timing_before_row", before),
		cb.Row().After("gorm:row").Register("storefront:timing_after_row", after),
		cb.Raw().Before("gorm:raw").Register("storefront:timing_before_raw", before),
		cb.Raw().After("gorm:raw").Register("storefront:timing_after_raw", after),
	}
	return errors.Join(steps...)
}

// annotateQuerySpan adds rows affected, table and slow-query markers to the
// span otelgorm opened for the statement.
func annotateQuerySpan(tx *gorm.DB, threshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, tx.Error.Error())
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > threshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}
