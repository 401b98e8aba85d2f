package invoicing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/backend/internal/domain/shared"
	"github.com/shopdesk/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Field limits
const (
	MaxInvoiceNumberLength = 50
	MaxNotesLength         = 2000
	MaxReasonLength        = 500
	MaxReferenceLength     = 100
)

// Invoice is the aggregate root for a customer invoice.
//
// Total is resolved upstream (pricing, tax and discounts) and is read-only
// here except through UpdateContent while in draft. PaidAmount, BalanceDue,
// FinancialStatus and Overpayment are derived from Total and Payments and are
// only ever written by ApplyFinancials.
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber   string               `json:"invoice_number"`
	CustomerID      uuid.UUID            `json:"customer_id"`
	CustomerName    string               `json:"customer_name"`
	VehicleID       *uuid.UUID           `json:"vehicle_id,omitempty"`
	WorkOrderID     *uuid.UUID           `json:"work_order_id,omitempty"`
	Status          Status               `json:"status"`
	Currency        valueobject.Currency `json:"currency"`
	LineItems       LineItems            `json:"line_items"`
	Notes           string               `json:"notes"`
	DueDate         *time.Time           `json:"due_date"`
	Total           decimal.Decimal      `json:"total"`
	Payments        Payments             `json:"payments"`
	PaidAmount      decimal.Decimal      `json:"paid_amount"`
	BalanceDue      decimal.Decimal      `json:"balance_due"`
	FinancialStatus FinancialStatus      `json:"financial_status"`
	Overpayment     decimal.Decimal      `json:"overpayment"`
	PaidAt          *time.Time           `json:"paid_at"`   // First time the invoice classified as paid; never cleared
	SentAt          *time.Time           `json:"sent_at"`   // When issued to the customer
	VoidedAt        *time.Time           `json:"voided_at"` // When voided
	VoidReason      string               `json:"void_reason"`
}

// NewInvoice creates a draft invoice with no payments
func NewInvoice(
	tenantID uuid.UUID,
	invoiceNumber string,
	customerID uuid.UUID,
	customerName string,
	total any,
	now time.Time,
) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > MaxInvoiceNumberLength {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", fmt.Sprintf("Invoice number cannot exceed %d characters", MaxInvoiceNumberLength))
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	totalAmount, err := validTotal(total)
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       invoiceNumber,
		CustomerID:          customerID,
		CustomerName:        customerName,
		Status:              StatusDraft,
		Currency:            valueobject.DefaultCurrency,
		LineItems:           LineItems{},
		Total:               totalAmount,
		Payments:            Payments{},
	}
	inv.CreatedAt = now
	inv.UpdatedAt = now
	inv.ApplyFinancials(now)

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv, now))
	return inv, nil
}

// SetCurrency sets the invoice currency. Only drafts may change it.
func (inv *Invoice) SetCurrency(currency valueobject.Currency) error {
	if err := AssertEditable(inv.Status); err != nil {
		return err
	}
	if !currency.IsValid() {
		return shared.NewDomainError("INVALID_CURRENCY", fmt.Sprintf("Invalid currency code: %q", currency))
	}
	inv.Currency = currency
	return nil
}

// SetReferences links the invoice to the vehicle and work order it bills for
func (inv *Invoice) SetReferences(vehicleID, workOrderID *uuid.UUID) error {
	if err := AssertEditable(inv.Status); err != nil {
		return err
	}
	inv.VehicleID = vehicleID
	inv.WorkOrderID = workOrderID
	return nil
}

// ContentUpdate carries the editable content of a draft. Nil fields are left
// unchanged.
type ContentUpdate struct {
	LineItems    LineItems
	Total        *decimal.Decimal
	Notes        *string
	DueDate      *time.Time
	ClearDueDate bool
}

// UpdateContent changes line items, total, notes or due date. Content is
// locked once the invoice leaves draft. An update that matches the current
// content reports changed=false and records nothing.
func (inv *Invoice) UpdateContent(update ContentUpdate, now time.Time) (changed bool, err error) {
	if err := AssertEditable(inv.Status); err != nil {
		return false, err
	}
	var total decimal.Decimal
	if update.Total != nil {
		if total, err = validTotal(*update.Total); err != nil {
			return false, err
		}
	}
	if update.Notes != nil && len(*update.Notes) > MaxNotesLength {
		return false, shared.NewDomainError("INVALID_NOTES", fmt.Sprintf("Notes cannot exceed %d characters", MaxNotesLength))
	}
	if !inv.contentDiffers(update, total) {
		return false, nil
	}

	previousTotal := inv.Total
	if update.LineItems != nil {
		inv.LineItems = update.LineItems
	}
	if update.Total != nil {
		inv.Total = total
	}
	if update.Notes != nil {
		inv.Notes = *update.Notes
	}
	switch {
	case update.ClearDueDate:
		inv.DueDate = nil
	case update.DueDate != nil:
		d := *update.DueDate
		inv.DueDate = &d
	}

	inv.ApplyFinancials(now)
	inv.Touch(now)
	inv.AddDomainEvent(NewInvoiceContentUpdatedEvent(inv, previousTotal, now))
	return true, nil
}

func (inv *Invoice) contentDiffers(update ContentUpdate, total decimal.Decimal) bool {
	switch {
	case update.LineItems != nil && !inv.LineItems.SameContent(update.LineItems):
		return true
	case update.Total != nil && !total.Equal(inv.Total):
		return true
	case update.Notes != nil && *update.Notes != inv.Notes:
		return true
	case update.ClearDueDate:
		return inv.DueDate != nil
	case update.DueDate != nil:
		return inv.DueDate == nil || !inv.DueDate.Equal(*update.DueDate)
	}
	return false
}

// validTotal rounds a total to minor units and rejects negative or
// unstorable amounts.
func validTotal(v any) (decimal.Decimal, error) {
	if !valueobject.IsStorableAmount(v) {
		return decimal.Zero, shared.NewDomainError("INVALID_AMOUNT", "Total amount is out of range")
	}
	total := valueobject.RoundToMinor(v)
	if total.IsNegative() {
		return decimal.Zero, shared.NewDomainError("INVALID_AMOUNT", "Total amount cannot be negative")
	}
	return total, nil
}

// TransitionTo moves the invoice to another lifecycle status. Requesting the
// current status succeeds without side effects and reports changed=false.
// Moving to paid recomputes financials; it does not require a zero balance.
func (inv *Invoice) TransitionTo(to Status, reason string, now time.Time) (changed bool, err error) {
	if err := AssertValidTransition(inv.Status, to); err != nil {
		return false, err
	}
	if inv.Status == to {
		return false, nil
	}
	if len(reason) > MaxReasonLength {
		return false, shared.NewDomainError("INVALID_REASON", fmt.Sprintf("Reason cannot exceed %d characters", MaxReasonLength))
	}

	from := inv.Status
	inv.Status = to
	switch to {
	case StatusSent:
		inv.SentAt = &now
	case StatusVoid:
		inv.VoidedAt = &now
		inv.VoidReason = reason
	case StatusPaid:
		inv.ApplyFinancials(now)
	}

	inv.Touch(now)
	inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, from, to, reason, now))
	return true, nil
}

// Send issues a draft invoice to the customer
func (inv *Invoice) Send(now time.Time) (bool, error) {
	return inv.TransitionTo(StatusSent, "", now)
}

// MarkPaid closes a sent invoice as paid
func (inv *Invoice) MarkPaid(now time.Time) (bool, error) {
	return inv.TransitionTo(StatusPaid, "", now)
}

// Void cancels a draft or sent invoice
func (inv *Invoice) Void(reason string, now time.Time) (bool, error) {
	return inv.TransitionTo(StatusVoid, reason, now)
}

// RecordPayment appends a payment and recomputes financials. Payments are
// accepted in every lifecycle status; overpayment is allowed.
func (inv *Invoice) RecordPayment(amount any, method PaymentMethod, reference string, now time.Time) (Payment, error) {
	if len(reference) > MaxReferenceLength {
		return Payment{}, shared.NewDomainError("INVALID_REFERENCE", fmt.Sprintf("Payment reference cannot exceed %d characters", MaxReferenceLength))
	}
	if !valueobject.IsStorableAmount(amount) {
		return Payment{}, shared.NewDomainError("INVALID_AMOUNT", "Payment amount is out of range")
	}
	p := NewPayment(amount, method, reference, now)
	if p.Amount.IsZero() {
		return Payment{}, shared.NewDomainError("INVALID_AMOUNT", "Payment amount cannot be zero")
	}

	inv.Payments = append(inv.Payments, p)
	inv.ApplyFinancials(now)
	inv.Touch(now)
	inv.AddDomainEvent(NewInvoicePaymentRecordedEvent(inv, p, now))
	return p, nil
}

// RemovePayment takes a payment back out (refund or dispute correction) and
// recomputes financials. PaidAt, once set, is kept. Stored payments without a
// valid ID cannot be addressed, so uuid.Nil never matches.
func (inv *Invoice) RemovePayment(paymentID uuid.UUID, now time.Time) (Payment, error) {
	idx := -1
	if paymentID != uuid.Nil {
		idx = inv.Payments.IndexOf(paymentID)
	}
	if idx < 0 {
		return Payment{}, shared.NewDomainError("PAYMENT_NOT_FOUND", "Payment not found on invoice")
	}
	removed := inv.Payments[idx]

	remaining := make(Payments, 0, len(inv.Payments)-1)
	remaining = append(remaining, inv.Payments[:idx]...)
	remaining = append(remaining, inv.Payments[idx+1:]...)
	inv.Payments = remaining

	inv.ApplyFinancials(now)
	inv.Touch(now)
	inv.AddDomainEvent(NewInvoicePaymentRemovedEvent(inv, removed, now))
	return removed, nil
}

// ApplyFinancials recomputes the derived fields from Total and Payments and
// merges the result into the invoice. PaidAt is stamped the first time the
// invoice classifies as paid and is never cleared. Calling it again without
// changing payments yields the same snapshot.
func (inv *Invoice) ApplyFinancials(now time.Time) ReconcileSnapshot {
	previous := inv.PaidAt
	snap := Reconcile(inv.Total, inv.Payments, inv.PaidAt, now)

	inv.PaidAmount = snap.PaidAmount
	inv.BalanceDue = snap.BalanceDue
	inv.FinancialStatus = snap.Status
	inv.Overpayment = snap.Overpayment
	if snap.FirstPaidAt(previous) {
		inv.PaidAt = snap.PaidAt
		inv.AddDomainEvent(NewInvoiceFullyPaidEvent(inv))
	}
	return snap
}

// Snapshot computes the current financial snapshot without modifying the invoice
func (inv *Invoice) Snapshot(now time.Time) ReconcileSnapshot {
	return Reconcile(inv.Total, inv.Payments, inv.PaidAt, now)
}

// IsStale reports whether the stored derived fields disagree with what
// Total and Payments imply
func (inv *Invoice) IsStale() bool {
	f := ComputeFinancials(inv.Total, inv.Payments)
	return !f.PaidAmount.Equal(inv.PaidAmount) ||
		!f.BalanceDue.Equal(inv.BalanceDue) ||
		!f.Overpayment.Equal(inv.Overpayment) ||
		f.Status != inv.FinancialStatus ||
		(f.Status == FinancialStatusPaid && inv.PaidAt == nil)
}

// IsEditable returns true if content may still be changed
func (inv *Invoice) IsEditable() bool {
	return inv.Status.IsEditable()
}

// IsOverdue returns true if the invoice was sent, still has a balance and is
// past its due date
func (inv *Invoice) IsOverdue(now time.Time) bool {
	if inv.DueDate == nil || inv.Status != StatusSent {
		return false
	}
	return inv.BalanceDue.IsPositive() && now.After(*inv.DueDate)
}

// TotalMoney returns the total as Money in the invoice currency
func (inv *Invoice) TotalMoney() valueobject.Money {
	return valueobject.MustNewMoney(inv.Total, inv.currency())
}

// BalanceDueMoney returns the balance due as Money in the invoice currency
func (inv *Invoice) BalanceDueMoney() valueobject.Money {
	return valueobject.MustNewMoney(inv.BalanceDue, inv.currency())
}

func (inv *Invoice) currency() valueobject.Currency {
	if inv.Currency.IsValid() {
		return inv.Currency
	}
	return valueobject.DefaultCurrency
}
