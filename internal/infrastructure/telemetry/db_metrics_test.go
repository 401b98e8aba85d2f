package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type meteredRow struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumByAttr(t *testing.T, m metricdata.Metrics, key attribute.Key) map[string]int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(key)
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestRegisterDBMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, db.AutoMigrate(&meteredRow{}))

	m, err := RegisterDBMetrics(db, meter, DBMetricsConfig{Enabled: true, SlowQueryThreshold: time.Nanosecond}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, m)
	defer m.Stop()

	require.NoError(t, db.Create(&meteredRow{Name: "a"}).Error)
	require.NoError(t, db.Create(&meteredRow{Name: "b"}).Error)
	var rows []meteredRow
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 2)

	metrics := collectMetrics(t, reader)

	byOp := sumByAttr(t, metrics["db_query_total"], AttrDBOperation)
	assert.Equal(t, int64(2), byOp["INSERT"])
	assert.Equal(t, int64(1), byOp["SELECT"])

	slow := sumByAttr(t, metrics["db_slow_query_total"], AttrDBTable)
	assert.Equal(t, int64(3), slow["metered_rows"])

	hist, ok := metrics["db_query_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)

	pool, ok := metrics["db_pool_connections"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	states := make(map[string]bool)
	for _, dp := range pool.DataPoints {
		v, _ := dp.Attributes.Value(AttrDBState)
		states[v.AsString()] = true
	}
	assert.Equal(t, map[string]bool{"idle": true, "in_use": true, "open": true}, states)
	assert.Contains(t, metrics, "db_pool_connections_max")

	m.Stop()
}

func TestRegisterDBMetrics_Disabled(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	m, err := RegisterDBMetrics(db, sdkmetric.NewMeterProvider().Meter("test"), DBMetricsConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, m)
	m.Stop()
}

func TestDetectOperationType(t *testing.T) {
	assert.Equal(t, "SELECT", detectOperationType("  select 1"))
	assert.Equal(t, "UPDATE", detectOperationType("UPDATE invoices SET"))
	assert.Equal(t, "OTHER", detectOperationType("CREATE TABLE x"))
}
