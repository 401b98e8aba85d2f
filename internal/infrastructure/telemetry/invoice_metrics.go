package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrTenantID      = attribute.Key("tenant_id")
	AttrOperation     = attribute.Key("operation")
	AttrFromStatus    = attribute.Key("from_status")
	AttrToStatus      = attribute.Key("to_status")
	AttrErrorCode     = attribute.Key("error_code")
	AttrPaymentMethod = attribute.Key("payment_method")
	AttrOutcome       = attribute.Key("outcome")
)

// InvoiceMetrics groups the business instruments recorded by the invoice service.
type InvoiceMetrics struct {
	created        *Counter
	transitions    *Counter
	rejected       *Counter
	payments       *Counter
	paymentAmount  *Counter
	paymentRemoved *Counter
	fullyPaid      *Counter
	lockContention *Counter
	opDuration     *Histogram
}

// NewInvoiceMetrics registers the invoice instruments on meter.
func NewInvoiceMetrics(meter metric.Meter) (*InvoiceMetrics, error) {
	var (
		m   InvoiceMetrics
		err error
	)

	if m.created, err = NewCounter(meter, "invoice.created.total", "Invoices created", "{invoice}"); err != nil {
		return nil, err
	}
	if m.transitions, err = NewCounter(meter, "invoice.transitions.total", "Applied status transitions", "{transition}"); err != nil {
		return nil, err
	}
	if m.rejected, err = NewCounter(meter, "invoice.rejected.total", "Operations rejected by lifecycle rules", "{operation}"); err != nil {
		return nil, err
	}
	if m.payments, err = NewCounter(meter, "invoice.payments.total", "Payments recorded", "{payment}"); err != nil {
		return nil, err
	}
	if m.paymentAmount, err = NewCounter(meter, "invoice.payments.amount_minor", "Sum of recorded payments in minor units", "{cent}"); err != nil {
		return nil, err
	}
	if m.paymentRemoved, err = NewCounter(meter, "invoice.payments.removed.total", "Payments removed", "{payment}"); err != nil {
		return nil, err
	}
	if m.fullyPaid, err = NewCounter(meter, "invoice.fully_paid.total", "Invoices that reached paid for the first time", "{invoice}"); err != nil {
		return nil, err
	}
	if m.lockContention, err = NewCounter(meter, "invoice.lock.contention.total", "Operations refused because the invoice was busy", "{operation}"); err != nil {
		return nil, err
	}
	if m.opDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "invoice.operation.duration",
		Description: "Invoice service operation latency",
		Unit:        "s",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}); err != nil {
		return nil, err
	}
	return &m, nil
}

// Nil receivers are no-ops so the service can run without metrics.

func (m *InvoiceMetrics) RecordCreated(ctx context.Context, tenantID string) {
	if m == nil {
		return
	}
	m.created.Inc(ctx, AttrTenantID.String(tenantID))
}

func (m *InvoiceMetrics) RecordTransition(ctx context.Context, tenantID, from, to string) {
	if m == nil {
		return
	}
	m.transitions.Inc(ctx,
		AttrTenantID.String(tenantID),
		AttrFromStatus.String(from),
		AttrToStatus.String(to),
	)
}

func (m *InvoiceMetrics) RecordRejected(ctx context.Context, operation, code string) {
	if m == nil {
		return
	}
	m.rejected.Inc(ctx, AttrOperation.String(operation), AttrErrorCode.String(code))
}

func (m *InvoiceMetrics) RecordPayment(ctx context.Context, tenantID, method string, amountMinor int64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrTenantID.String(tenantID), AttrPaymentMethod.String(method)}
	m.payments.Inc(ctx, attrs...)
	if amountMinor > 0 {
		m.paymentAmount.Add(ctx, amountMinor, attrs...)
	}
}

func (m *InvoiceMetrics) RecordPaymentRemoved(ctx context.Context, tenantID string) {
	if m == nil {
		return
	}
	m.paymentRemoved.Inc(ctx, AttrTenantID.String(tenantID))
}

func (m *InvoiceMetrics) RecordFullyPaid(ctx context.Context, tenantID string) {
	if m == nil {
		return
	}
	m.fullyPaid.Inc(ctx, AttrTenantID.String(tenantID))
}

func (m *InvoiceMetrics) RecordLockContention(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.lockContention.Inc(ctx, AttrOperation.String(operation))
}

// ObserveOperation records the latency of operation since start.
func (m *InvoiceMetrics) ObserveOperation(ctx context.Context, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.opDuration.RecordDuration(ctx, time.Since(start),
		AttrOperation.String(operation),
		AttrOutcome.String(outcome),
	)
}
