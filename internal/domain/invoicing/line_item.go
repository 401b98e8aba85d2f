package invoicing

import (
	"database/sql/driver"

	"github.com/google/uuid"
	"github.com/shopdesk/backend/internal/domain/shared"
	"github.com/shopdesk/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LineItem is one billed line (labor, part, fee). Amount is quantity times
// unit price rounded to the minor unit. Taxes and discounts are already
// resolved into the invoice total upstream, so line items never drive it.
type LineItem struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// NewLineItem creates a line item
func NewLineItem(description string, quantity, unitPrice any) (LineItem, error) {
	if description == "" {
		return LineItem{}, shared.NewDomainError("INVALID_LINE_ITEM", "Line item description cannot be empty")
	}
	if len(description) > 500 {
		return LineItem{}, shared.NewDomainError("INVALID_LINE_ITEM", "Line item description cannot exceed 500 characters")
	}
	qty := valueobject.CoerceAmount(quantity)
	if qty.IsNegative() {
		return LineItem{}, shared.NewDomainError("INVALID_LINE_ITEM", "Line item quantity cannot be negative")
	}
	price := valueobject.RoundToMinor(unitPrice)
	amount := valueobject.RoundToMinor(qty.Mul(price))
	if !valueobject.IsStorableAmount(price) || !valueobject.IsStorableAmount(amount) {
		return LineItem{}, shared.NewDomainError("INVALID_LINE_ITEM", "Line item amount is out of range")
	}
	return LineItem{
		ID:          uuid.New(),
		Description: description,
		Quantity:    qty,
		UnitPrice:   price,
		Amount:      amount,
	}, nil
}

// sameContent compares everything but the ID
func (i LineItem) sameContent(other LineItem) bool {
	return i.Description == other.Description &&
		i.Quantity.Equal(other.Quantity) &&
		i.UnitPrice.Equal(other.UnitPrice) &&
		i.Amount.Equal(other.Amount)
}

// LineItems is a slice of LineItem that implements GORM Scanner/Valuer for JSONB storage
type LineItems []LineItem

// Value implements driver.Valuer interface for GORM to store as JSONB
func (l LineItems) Value() (driver.Value, error) {
	return jsonbValue(l, l == nil)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (l *LineItems) Scan(value any) error {
	*l = LineItems{}
	return jsonbScan(value, l)
}

// SameContent reports whether both lists bill the same lines in the same
// order. Line IDs are ignored.
func (l LineItems) SameContent(other LineItems) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if !l[i].sameContent(other[i]) {
			return false
		}
	}
	return true
}

// Subtotal sums line amounts in minor units
func (l LineItems) Subtotal() decimal.Decimal {
	var minor int64
	for _, item := range l {
		minor = valueobject.AddMinorUnits(minor, valueobject.ToMinorUnits(item.Amount))
	}
	return valueobject.ToMajorUnits(minor)
}
