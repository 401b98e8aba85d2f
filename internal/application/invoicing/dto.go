package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/backend/internal/domain/invoicing"
	"github.com/shopdesk/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LineItemInput is one line of a create or update request
type LineItemInput struct {
	Description string          `json:"description" binding:"required,min=1,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateInvoiceRequest creates a draft invoice. An empty InvoiceNumber is
// generated; a nil Total falls back to the line item subtotal.
type CreateInvoiceRequest struct {
	InvoiceNumber string           `json:"invoice_number" binding:"omitempty,max=50"`
	CustomerID    uuid.UUID        `json:"customer_id" binding:"required"`
	CustomerName  string           `json:"customer_name" binding:"max=200"`
	VehicleID     *uuid.UUID       `json:"vehicle_id"`
	WorkOrderID   *uuid.UUID       `json:"work_order_id"`
	Currency      string           `json:"currency" binding:"omitempty,len=3"`
	LineItems     []LineItemInput  `json:"line_items" binding:"omitempty,dive"`
	Total         *decimal.Decimal `json:"total"`
	Notes         string           `json:"notes" binding:"max=2000"`
	DueDate       *time.Time       `json:"due_date"`
}

// UpdateInvoiceRequest changes draft content. Nil fields are left unchanged.
type UpdateInvoiceRequest struct {
	LineItems    *[]LineItemInput `json:"line_items" binding:"omitempty,dive"`
	Total        *decimal.Decimal `json:"total"`
	Notes        *string          `json:"notes" binding:"omitempty,max=2000"`
	DueDate      *time.Time       `json:"due_date"`
	ClearDueDate bool             `json:"clear_due_date"`
}

// TransitionRequest asks for a lifecycle status change
type TransitionRequest struct {
	To     string `json:"to" binding:"required,invoice_status"`
	Reason string `json:"reason" binding:"max=500"`
}

// VoidRequest carries the void reason
type VoidRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// RecordPaymentRequest applies a payment. Amount accepts a JSON number or a
// numeric string; anything else counts as zero and is rejected.
type RecordPaymentRequest struct {
	Amount    any    `json:"amount" binding:"required"`
	Method    string `json:"method" binding:"omitempty,oneof=cash card check bank_transfer other"`
	Reference string `json:"reference" binding:"max=100"`
}

// InvoiceListFilter defines filtering options for invoice list queries
type InvoiceListFilter struct {
	Search          string     `form:"search"`
	Status          string     `form:"status" binding:"omitempty,invoice_status"`
	FinancialStatus string     `form:"financial_status" binding:"omitempty,oneof=paid partial due"`
	CustomerID      *uuid.UUID `form:"customer_id"`
	WorkOrderID     *uuid.UUID `form:"work_order_id"`
	Page            int        `form:"page" binding:"omitempty,min=1"`
	PageSize        int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy         string     `form:"order_by"`
	OrderDir        string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// LineItemResponse represents a line item in API responses
type LineItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID         uuid.UUID       `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Reference  string          `json:"reference,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID              uuid.UUID          `json:"id"`
	TenantID        uuid.UUID          `json:"tenant_id"`
	InvoiceNumber   string             `json:"invoice_number"`
	CustomerID      uuid.UUID          `json:"customer_id"`
	CustomerName    string             `json:"customer_name"`
	VehicleID       *uuid.UUID         `json:"vehicle_id,omitempty"`
	WorkOrderID     *uuid.UUID         `json:"work_order_id,omitempty"`
	Status          string             `json:"status"`
	Editable        bool               `json:"editable"`
	Currency        string             `json:"currency"`
	LineItems       []LineItemResponse `json:"line_items"`
	Notes           string             `json:"notes,omitempty"`
	DueDate         *time.Time         `json:"due_date,omitempty"`
	Overdue         bool               `json:"overdue"`
	Total           decimal.Decimal    `json:"total"`
	Payments        []PaymentResponse  `json:"payments"`
	PaidAmount      decimal.Decimal    `json:"paid_amount"`
	BalanceDue      decimal.Decimal    `json:"balance_due"`
	FinancialStatus string             `json:"financial_status"`
	Overpayment     decimal.Decimal    `json:"overpayment"`
	PaidAt          *time.Time         `json:"paid_at,omitempty"`
	SentAt          *time.Time         `json:"sent_at,omitempty"`
	VoidedAt        *time.Time         `json:"voided_at,omitempty"`
	VoidReason      string             `json:"void_reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Version         int                `json:"version"`
}

// RecordPaymentResponse returns the applied payment and the updated invoice
type RecordPaymentResponse struct {
	Payment PaymentResponse `json:"payment"`
	Invoice InvoiceResponse `json:"invoice"`
}

// FinancialsResponse is the derived financial snapshot of an invoice.
// Stale reports that the stored fields disagree with the snapshot and a
// recompute would change them.
type FinancialsResponse struct {
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	Total           decimal.Decimal `json:"total"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	BalanceDue      decimal.Decimal `json:"balance_due"`
	FinancialStatus string          `json:"financial_status"`
	Overpayment     decimal.Decimal `json:"overpayment"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	Stale           bool            `json:"stale"`
}

// FinancialStatusSummary aggregates invoices sharing a financial status
type FinancialStatusSummary struct {
	FinancialStatus string          `json:"financial_status"`
	Count           int64           `json:"count"`
	Total           decimal.Decimal `json:"total"`
	Paid            decimal.Decimal `json:"paid"`
	Balance         decimal.Decimal `json:"balance"`
}

// InvoiceSummaryResponse aggregates a tenant's non-void invoices
type InvoiceSummaryResponse struct {
	ByFinancialStatus []FinancialStatusSummary `json:"by_financial_status"`
	InvoiceCount      int64                    `json:"invoice_count"`
	TotalBilled       decimal.Decimal          `json:"total_billed"`
	TotalCollected    decimal.Decimal          `json:"total_collected"`
	TotalOutstanding  decimal.Decimal          `json:"total_outstanding"`
}

// ToInvoiceResponse converts a domain Invoice to its API representation
func ToInvoiceResponse(inv *invoicing.Invoice, now time.Time) InvoiceResponse {
	lineItems := make([]LineItemResponse, len(inv.LineItems))
	for i, li := range inv.LineItems {
		lineItems[i] = LineItemResponse{
			ID:          li.ID,
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Amount:      li.Amount,
		}
	}
	payments := make([]PaymentResponse, len(inv.Payments))
	for i, p := range inv.Payments {
		payments[i] = toPaymentResponse(p)
	}

	currency := inv.Currency
	if !currency.IsValid() {
		currency = valueobject.DefaultCurrency
	}

	return InvoiceResponse{
		ID:              inv.ID,
		TenantID:        inv.TenantID,
		InvoiceNumber:   inv.InvoiceNumber,
		CustomerID:      inv.CustomerID,
		CustomerName:    inv.CustomerName,
		VehicleID:       inv.VehicleID,
		WorkOrderID:     inv.WorkOrderID,
		Status:          string(inv.Status),
		Editable:        inv.IsEditable(),
		Currency:        string(currency),
		LineItems:       lineItems,
		Notes:           inv.Notes,
		DueDate:         inv.DueDate,
		Overdue:         inv.IsOverdue(now),
		Total:           inv.Total,
		Payments:        payments,
		PaidAmount:      inv.PaidAmount,
		BalanceDue:      inv.BalanceDue,
		FinancialStatus: string(inv.FinancialStatus),
		Overpayment:     inv.Overpayment,
		PaidAt:          inv.PaidAt,
		SentAt:          inv.SentAt,
		VoidedAt:        inv.VoidedAt,
		VoidReason:      inv.VoidReason,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
		Version:         inv.Version,
	}
}

func toPaymentResponse(p invoicing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:         p.ID,
		Amount:     p.Amount,
		Method:     string(p.Method),
		Reference:  p.Reference,
		ReceivedAt: p.ReceivedAt,
	}
}

func toLineItems(inputs []LineItemInput) (invoicing.LineItems, error) {
	items := make(invoicing.LineItems, 0, len(inputs))
	for _, in := range inputs {
		item, err := invoicing.NewLineItem(in.Description, in.Quantity, in.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
