package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/backend/internal/domain/invoicing"
	"github.com/shopdesk/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
// Money is stored twice: as decimal for reading and as integer minor units
// so that aggregates are summed exactly by the database.
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber   string                    `gorm:"type:varchar(50);not null;index"`
	CustomerID      uuid.UUID                 `gorm:"type:uuid;not null;index"`
	CustomerName    string                    `gorm:"type:varchar(200);not null;default:''"`
	VehicleID       *uuid.UUID                `gorm:"type:uuid"`
	WorkOrderID     *uuid.UUID                `gorm:"type:uuid;index"`
	Status          invoicing.Status          `gorm:"type:varchar(20);not null;default:'draft';index"`
	Currency        valueobject.Currency      `gorm:"type:varchar(3);not null;default:'USD'"`
	LineItems       invoicing.LineItems       `gorm:"type:jsonb;not null;default:'[]'"`
	Notes           string                    `gorm:"type:text"`
	DueDate         *time.Time                `gorm:"index"`
	Total           decimal.Decimal           `gorm:"type:decimal(18,2);not null"`
	TotalMinor      int64                     `gorm:"not null;default:0"`
	Payments        invoicing.Payments        `gorm:"type:jsonb;not null;default:'[]'"`
	PaidAmount      decimal.Decimal           `gorm:"type:decimal(18,2);not null"`
	PaidMinor       int64                     `gorm:"not null;default:0"`
	BalanceDue      decimal.Decimal           `gorm:"type:decimal(18,2);not null"`
	BalanceMinor    int64                     `gorm:"not null;default:0"`
	Overpayment     decimal.Decimal           `gorm:"type:decimal(18,2);not null"`
	FinancialStatus invoicing.FinancialStatus `gorm:"type:varchar(20);not null;default:'due';index"`
	PaidAt          *time.Time
	SentAt          *time.Time
	VoidedAt        *time.Time
	VoidReason      string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice.
// Stored derived fields are returned as-is; callers recompute when needed.
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	lineItems := m.LineItems
	if lineItems == nil {
		lineItems = invoicing.LineItems{}
	}
	payments := m.Payments
	if payments == nil {
		payments = invoicing.Payments{}
	}
	return &invoicing.Invoice{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		InvoiceNumber:       m.InvoiceNumber,
		CustomerID:          m.CustomerID,
		CustomerName:        m.CustomerName,
		VehicleID:           m.VehicleID,
		WorkOrderID:         m.WorkOrderID,
		Status:              m.Status,
		Currency:            m.Currency,
		LineItems:           lineItems,
		Notes:               m.Notes,
		DueDate:             m.DueDate,
		Total:               m.Total,
		Payments:            payments,
		PaidAmount:          m.PaidAmount,
		BalanceDue:          m.BalanceDue,
		FinancialStatus:     m.FinancialStatus,
		Overpayment:         m.Overpayment,
		PaidAt:              m.PaidAt,
		SentAt:              m.SentAt,
		VoidedAt:            m.VoidedAt,
		VoidReason:          m.VoidReason,
	}
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.CustomerID = inv.CustomerID
	m.CustomerName = inv.CustomerName
	m.VehicleID = inv.VehicleID
	m.WorkOrderID = inv.WorkOrderID
	m.Status = inv.Status
	m.Currency = inv.Currency
	m.LineItems = inv.LineItems
	m.Notes = inv.Notes
	m.DueDate = inv.DueDate
	m.Total = inv.Total
	m.TotalMinor = valueobject.ToMinorUnits(inv.Total)
	m.Payments = inv.Payments
	m.PaidAmount = inv.PaidAmount
	m.PaidMinor = valueobject.ToMinorUnits(inv.PaidAmount)
	m.BalanceDue = inv.BalanceDue
	m.BalanceMinor = valueobject.ToMinorUnits(inv.BalanceDue)
	m.Overpayment = inv.Overpayment
	m.FinancialStatus = inv.FinancialStatus
	m.PaidAt = inv.PaidAt
	m.SentAt = inv.SentAt
	m.VoidedAt = inv.VoidedAt
	m.VoidReason = inv.VoidReason
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}
