package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/backend/internal/domain/shared"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	Status          *Status          // Filter by lifecycle status
	FinancialStatus *FinancialStatus // Filter by derived financial status
	CustomerID      *uuid.UUID       // Filter by customer
	WorkOrderID     *uuid.UUID       // Filter by work order
	FromDate        *time.Time       // Filter by creation date range start
	ToDate          *time.Time       // Filter by creation date range end
}

// FinancialStatusTotals aggregates invoices sharing a financial status.
// Amounts are minor units summed by the store.
type FinancialStatusTotals struct {
	FinancialStatus FinancialStatus
	Count           int64
	TotalMinor      int64
	PaidMinor       int64
	BalanceMinor    int64
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByIDForTenant finds an invoice by ID for a specific tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindAllForTenant finds invoices for a tenant with filtering and paging
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// CountForTenant counts invoices matching the filter, ignoring paging
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) (int64, error)

	// ExistsByNumber reports whether the number is taken for the tenant
	ExistsByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (bool, error)

	// Create inserts a new invoice
	Create(ctx context.Context, invoice *Invoice) error

	// SaveWithLock updates an invoice whose Version has been incremented once
	// since it was loaded. It fails with shared.ErrConcurrencyConflict when the
	// stored row no longer holds Version-1.
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// SummarizeByFinancialStatus aggregates the tenant's non-void invoices
	SummarizeByFinancialStatus(ctx context.Context, tenantID uuid.UUID) ([]FinancialStatusTotals, error)

	// GenerateInvoiceNumber returns the next number for the tenant on the given day
	GenerateInvoiceNumber(ctx context.Context, tenantID uuid.UUID, prefix string, at time.Time) (string, error)
}
