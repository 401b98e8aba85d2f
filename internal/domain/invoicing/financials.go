package invoicing

import (
	"time"

	"github.com/shopdesk/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// FinancialStatus classifies how much of an invoice has been settled.
// It is derived from total and payments, independent of the lifecycle Status.
type FinancialStatus string

const (
	FinancialStatusPaid    FinancialStatus = "paid"    // Positive total, nothing left to pay
	FinancialStatusPartial FinancialStatus = "partial" // Some money received, balance remains
	FinancialStatusDue     FinancialStatus = "due"     // Nothing received
)

// IsValid checks if the financial status is valid
func (s FinancialStatus) IsValid() bool {
	switch s {
	case FinancialStatusPaid, FinancialStatusPartial, FinancialStatusDue:
		return true
	}
	return false
}

// String returns the string representation of FinancialStatus
func (s FinancialStatus) String() string {
	return string(s)
}

// Financials is the derived money picture of an invoice.
type Financials struct {
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	BalanceDue  decimal.Decimal `json:"balance_due"`
	Status      FinancialStatus `json:"financial_status"`
	Overpayment decimal.Decimal `json:"overpayment"` // Received beyond total; informational only
}

// ComputeFinancials derives paid amount, balance and classification from a
// total and its payments. All arithmetic happens in minor units, so the result
// depends only on the multiset of payment amounts. Malformed amounts count as
// zero and a negative total is treated as zero.
func ComputeFinancials(total any, payments []Payment) Financials {
	totalMinor := max(valueobject.ToMinorUnits(total), 0)

	var paidMinor int64
	for _, p := range payments {
		paidMinor = valueobject.AddMinorUnits(paidMinor, valueobject.ToMinorUnits(p.Amount))
	}

	balanceMinor := max(valueobject.SubMinorUnits(totalMinor, paidMinor), 0)
	overMinor := max(valueobject.SubMinorUnits(paidMinor, totalMinor), 0)

	status := FinancialStatusDue
	switch {
	case totalMinor > 0 && balanceMinor == 0:
		status = FinancialStatusPaid
	case paidMinor > 0:
		status = FinancialStatusPartial
	}

	return Financials{
		PaidAmount:  valueobject.ToMajorUnits(paidMinor),
		BalanceDue:  valueobject.ToMajorUnits(balanceMinor),
		Status:      status,
		Overpayment: valueobject.ToMajorUnits(overMinor),
	}
}

// ReconcileSnapshot is Financials plus the paid timestamp that should be
// persisted alongside them.
type ReconcileSnapshot struct {
	Financials
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

// FirstPaidAt reports whether the snapshot stamps a paid time that the
// previous state did not have.
func (s ReconcileSnapshot) FirstPaidAt(previous *time.Time) bool {
	return previous == nil && s.PaidAt != nil
}

// Reconcile computes financials and resolves the paid timestamp. PaidAt is set
// to now only when the invoice classifies as paid and had no paid time yet.
// An existing paid time is carried over unchanged, even when the invoice no
// longer classifies as paid. The inputs are not modified.
func Reconcile(total any, payments []Payment, paidAt *time.Time, now time.Time) ReconcileSnapshot {
	snap := ReconcileSnapshot{Financials: ComputeFinancials(total, payments)}
	switch {
	case paidAt != nil:
		t := *paidAt
		snap.PaidAt = &t
	case snap.Status == FinancialStatusPaid:
		t := now
		snap.PaidAt = &t
	}
	return snap
}
