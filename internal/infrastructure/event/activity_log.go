package event

import (
	"context"

	"github.com/shopdesk/backend/internal/domain/invoicing"
	"github.com/shopdesk/backend/internal/domain/shared"
	"github.com/shopdesk/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// InvoiceActivityLogger writes one structured log line per invoice event.
// It is the audit trail for lifecycle changes and money movements.
type InvoiceActivityLogger struct {
	logger *zap.Logger
}

// NewInvoiceActivityLogger creates the handler
func NewInvoiceActivityLogger(logger *zap.Logger) *InvoiceActivityLogger {
	return &InvoiceActivityLogger{logger: logger.Named("invoice_activity")}
}

// EventTypes returns the invoice event types
func (h *InvoiceActivityLogger) EventTypes() []string {
	return []string{
		invoicing.EventTypeInvoiceCreated,
		invoicing.EventTypeInvoiceContentUpdated,
		invoicing.EventTypeInvoiceStatusChanged,
		invoicing.EventTypeInvoicePaymentRecorded,
		invoicing.EventTypeInvoicePaymentRemoved,
		invoicing.EventTypeInvoiceFullyPaid,
	}
}

// Handle logs the event with its type specific fields
func (h *InvoiceActivityLogger) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("invoice_id", event.AggregateID().String()),
		zap.String("event_tenant_id", event.TenantID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *invoicing.InvoiceCreatedEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("total", e.Total.StringFixed(2)),
		)
	case *invoicing.InvoiceContentUpdatedEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("previous_total", e.PreviousTotal.StringFixed(2)),
			zap.String("total", e.Total.StringFixed(2)),
		)
	case *invoicing.InvoiceStatusChangedEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("from", string(e.From)),
			zap.String("to", string(e.To)),
		)
		if e.Reason != "" {
			fields = append(fields, zap.String("reason", e.Reason))
		}
	case *invoicing.InvoicePaymentRecordedEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("payment_id", e.PaymentID.String()),
			zap.String("amount", e.Amount.StringFixed(2)),
			zap.String("method", string(e.Method)),
			zap.String("balance_due", e.BalanceDue.StringFixed(2)),
			zap.String("financial_status", string(e.FinancialStatus)),
		)
	case *invoicing.InvoicePaymentRemovedEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("payment_id", e.PaymentID.String()),
			zap.String("amount", e.Amount.StringFixed(2)),
			zap.String("balance_due", e.BalanceDue.StringFixed(2)),
			zap.String("financial_status", string(e.FinancialStatus)),
		)
	case *invoicing.InvoiceFullyPaidEvent:
		fields = append(fields,
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("paid_amount", e.PaidAmount.StringFixed(2)),
			zap.Time("paid_at", e.PaidAt),
		)
		if e.Overpayment.IsPositive() {
			fields = append(fields, zap.String("overpayment", e.Overpayment.StringFixed(2)))
		}
	}

	logger.Enrich(ctx, h.logger).Info("invoice activity", fields...)
	return nil
}

var _ shared.EventHandler = (*InvoiceActivityLogger)(nil)
