package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeInvoice is the aggregate type carried by invoice events
const AggregateTypeInvoice = "Invoice"

// Event type names
const (
	EventTypeInvoiceCreated         = "InvoiceCreated"
	EventTypeInvoiceContentUpdated  = "InvoiceContentUpdated"
	EventTypeInvoiceStatusChanged   = "InvoiceStatusChanged"
	EventTypeInvoicePaymentRecorded = "InvoicePaymentRecorded"
	EventTypeInvoicePaymentRemoved  = "InvoicePaymentRemoved"
	EventTypeInvoiceFullyPaid       = "InvoiceFullyPaid"
)

func newInvoiceEventBase(eventType string, inv *Invoice, at time.Time) shared.BaseDomainEvent {
	return shared.NewBaseDomainEvent(eventType, AggregateTypeInvoice, inv.ID, inv.TenantID, at)
}

// InvoiceCreatedEvent is raised when a draft invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Total         decimal.Decimal `json:"total"`
}

// EventType returns the event type name
func (e *InvoiceCreatedEvent) EventType() string {
	return EventTypeInvoiceCreated
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice, at time.Time) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: newInvoiceEventBase(EventTypeInvoiceCreated, inv, at),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		Total:           inv.Total,
	}
}

// InvoiceContentUpdatedEvent is raised when a draft invoice's content changes
type InvoiceContentUpdatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	PreviousTotal decimal.Decimal `json:"previous_total"`
	Total         decimal.Decimal `json:"total"`
}

// EventType returns the event type name
func (e *InvoiceContentUpdatedEvent) EventType() string {
	return EventTypeInvoiceContentUpdated
}

// NewInvoiceContentUpdatedEvent creates a new InvoiceContentUpdatedEvent
func NewInvoiceContentUpdatedEvent(inv *Invoice, previousTotal decimal.Decimal, at time.Time) *InvoiceContentUpdatedEvent {
	return &InvoiceContentUpdatedEvent{
		BaseDomainEvent: newInvoiceEventBase(EventTypeInvoiceContentUpdated, inv, at),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		PreviousTotal:   previousTotal,
		Total:           inv.Total,
	}
}

// InvoiceStatusChangedEvent is raised on every accepted lifecycle transition
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	From          Status    `json:"from"`
	To            Status    `json:"to"`
	Reason        string    `json:"reason,omitempty"`
}

// EventType returns the event type name
func (e *InvoiceStatusChangedEvent) EventType() string {
	return EventTypeInvoiceStatusChanged
}

// NewInvoiceStatusChangedEvent creates a new InvoiceStatusChangedEvent
func NewInvoiceStatusChangedEvent(inv *Invoice, from, to Status, reason string, at time.Time) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: newInvoiceEventBase(EventTypeInvoiceStatusChanged, inv, at),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		From:            from,
		To:              to,
		Reason:          reason,
	}
}

// InvoicePaymentRecordedEvent is raised when a payment is applied
type InvoicePaymentRecordedEvent struct {
	shared.BaseDomainEvent
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	PaymentID       uuid.UUID       `json:"payment_id"`
	Amount          decimal.Decimal `json:"amount"`
	Method          PaymentMethod   `json:"method"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	BalanceDue      decimal.Decimal `json:"balance_due"`
	FinancialStatus FinancialStatus `json:"financial_status"`
}

// EventType returns the event type name
func (e *InvoicePaymentRecordedEvent) EventType() string {
	return EventTypeInvoicePaymentRecorded
}

// NewInvoicePaymentRecordedEvent creates a new InvoicePaymentRecordedEvent
func NewInvoicePaymentRecordedEvent(inv *Invoice, p Payment, at time.Time) *InvoicePaymentRecordedEvent {
	return &InvoicePaymentRecordedEvent{
		BaseDomainEvent: newInvoiceEventBase(EventTypeInvoicePaymentRecorded, inv, at),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		PaymentID:       p.ID,
		Amount:          p.Amount,
		Method:          p.Method,
		PaidAmount:      inv.PaidAmount,
		BalanceDue:      inv.BalanceDue,
		FinancialStatus: inv.FinancialStatus,
	}
}

// InvoicePaymentRemovedEvent is raised when a payment is taken back (refund or
// dispute correction)
type InvoicePaymentRemovedEvent struct {
	shared.BaseDomainEvent
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	PaymentID       uuid.UUID       `json:"payment_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	BalanceDue      decimal.Decimal `json:"balance_due"`
	FinancialStatus FinancialStatus `json:"financial_status"`
}

// EventType returns the event type name
func (e *InvoicePaymentRemovedEvent) EventType() string {
	return EventTypeInvoicePaymentRemoved
}

// NewInvoicePaymentRemovedEvent creates a new InvoicePaymentRemovedEvent
func NewInvoicePaymentRemovedEvent(inv *Invoice, p Payment, at time.Time) *InvoicePaymentRemovedEvent {
	return &InvoicePaymentRemovedEvent{
		BaseDomainEvent: newInvoiceEventBase(EventTypeInvoicePaymentRemoved, inv, at),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		PaymentID:       p.ID,
		Amount:          p.Amount,
		PaidAmount:      inv.PaidAmount,
		BalanceDue:      inv.BalanceDue,
		FinancialStatus: inv.FinancialStatus,
	}
}

// InvoiceFullyPaidEvent is raised once, when PaidAt is first stamped
type InvoiceFullyPaidEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Total         decimal.Decimal `json:"total"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Overpayment   decimal.Decimal `json:"overpayment"`
	PaidAt        time.Time       `json:"paid_at"`
}

// EventType returns the event type name
func (e *InvoiceFullyPaidEvent) EventType() string {
	return EventTypeInvoiceFullyPaid
}

// NewInvoiceFullyPaidEvent creates a new InvoiceFullyPaidEvent
func NewInvoiceFullyPaidEvent(inv *Invoice) *InvoiceFullyPaidEvent {
	paidAt := time.Now()
	if inv.PaidAt != nil {
		paidAt = *inv.PaidAt
	}
	return &InvoiceFullyPaidEvent{
		BaseDomainEvent: newInvoiceEventBase(EventTypeInvoiceFullyPaid, inv, paidAt),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		Total:           inv.Total,
		PaidAmount:      inv.PaidAmount,
		Overpayment:     inv.Overpayment,
		PaidAt:          paidAt,
	}
}
