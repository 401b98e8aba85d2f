package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopdesk/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*telemetry.InvoiceMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewInvoiceMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestInvoiceMetrics_Counters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCreated(ctx, "t1")
	m.RecordCreated(ctx, "t1")
	m.RecordTransition(ctx, "t1", "draft", "sent")
	m.RecordRejected(ctx, "update", "INVOICE_LOCKED")
	m.RecordPayment(ctx, "t1", "cash", 2500)
	m.RecordPayment(ctx, "t1", "card", -500)
	m.RecordPaymentRemoved(ctx, "t1")
	m.RecordFullyPaid(ctx, "t1")
	m.RecordLockContention(ctx, "record_payment")

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, data["invoice.created.total"]))
	assert.Equal(t, int64(1), sumOf(t, data["invoice.transitions.total"]))
	assert.Equal(t, int64(1), sumOf(t, data["invoice.rejected.total"]))
	assert.Equal(t, int64(2), sumOf(t, data["invoice.payments.total"]))
	assert.Equal(t, int64(2500), sumOf(t, data["invoice.payments.amount_minor"]))
	assert.Equal(t, int64(1), sumOf(t, data["invoice.payments.removed.total"]))
	assert.Equal(t, int64(1), sumOf(t, data["invoice.fully_paid.total"]))
	assert.Equal(t, int64(1), sumOf(t, data["invoice.lock.contention.total"]))
}

func TestInvoiceMetrics_ObserveOperation(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.ObserveOperation(context.Background(), "send", time.Now(), nil)
	m.ObserveOperation(context.Background(), "send", time.Now(), errors.New("x"))

	hist, ok := collect(t, reader)["invoice.operation.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)
}

func TestInvoiceMetrics_NilReceiver(t *testing.T) {
	var m *telemetry.InvoiceMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordCreated(ctx, "t1")
		m.RecordTransition(ctx, "t1", "draft", "sent")
		m.RecordRejected(ctx, "send", "X")
		m.RecordPayment(ctx, "t1", "cash", 1)
		m.RecordPaymentRemoved(ctx, "t1")
		m.RecordFullyPaid(ctx, "t1")
		m.RecordLockContention(ctx, "send")
		m.ObserveOperation(ctx, "send", time.Now(), nil)
	})
}
