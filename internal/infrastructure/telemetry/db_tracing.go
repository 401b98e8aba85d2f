package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig configures GORM tracing.
type DBTracingConfig struct {
	Enabled         bool
	DBSystem        string
	SlowQueryThresh time.Duration
	// Bind values can carry customer names and amounts.
	RecordQueryVariables bool
}

// DefaultDBTracingConfig returns the tracing defaults for postgres.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:         true,
		DBSystem:        "postgresql",
		SlowQueryThresh: 200 * time.Millisecond,
	}
}

const queryStartKey = "telemetry:query_start"

// DBTracingPlugin registers otelgorm plus slow-query annotation callbacks.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a DBTracingPlugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// Register installs the plugin on db. It is a no-op when tracing is disabled.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.RecordQueryVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("failed to register otelgorm plugin: %w", err)
	}

	cb := db.Callback()
	before := []error{
		cb.Create().Before("gorm:create").Register("telemetry:before_create", p.before),
		cb.Query().Before("gorm:query").Register("telemetry:before_query", p.before),
		cb.Update().Before("gorm:update").Register("telemetry:before_update", p.before),
		cb.Delete().Before("gorm:delete").Register("telemetry:before_delete", p.before),
		cb.Row().Before("gorm:row").Register("telemetry:before_row", p.before),
		cb.Raw().Before("gorm:raw").Register("telemetry:before_raw", p.before),
	}
	after := []error{
		cb.Create().After("gorm:create").Register("telemetry:after_create", p.after),
		cb.Query().After("gorm:query").Register("telemetry:after_query", p.after),
		cb.Update().After("gorm:update").Register("telemetry:after_update", p.after),
		cb.Delete().After("gorm:delete").Register("telemetry:after_delete", p.after),
		cb.Row().After("gorm:row").Register("telemetry:after_row", p.after),
		cb.Raw().After("gorm:raw").Register("telemetry:after_raw", p.after),
	}
	if err := errors.Join(append(before, after...)...); err != nil {
		return fmt.Errorf("failed to register tracing callbacks: %w", err)
	}

	p.logger.Info("Database tracing enabled",
		zap.String("db_system", p.config.DBSystem),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

func (p *DBTracingPlugin) before(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

func (p *DBTracingPlugin) after(db *gorm.DB) {
	if db.Statement == nil || db.Statement.Context == nil {
		return
	}
	span := trace.SpanFromContext(db.Statement.Context)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}

	v, ok := db.InstanceGet(queryStartKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if !ok || p.config.SlowQueryThresh <= 0 {
		return
	}
	if elapsed := time.Since(start); elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}
