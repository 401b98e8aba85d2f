package invoicing

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentMethod describes how a payment was received
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodCheck,
		PaymentMethodBankTransfer, PaymentMethodOther:
		return true
	}
	return false
}

// Payment is money applied against an invoice. It is a value object inside the
// Invoice aggregate, stored as JSONB. Amount may be negative (manual
// corrections) and is never validated here.
type Payment struct {
	ID         uuid.UUID       `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     PaymentMethod   `json:"method,omitempty"`
	Reference  string          `json:"reference,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// NewPayment creates a payment. The amount is coerced defensively and kept at
// minor-unit precision; an unknown method becomes "other".
func NewPayment(amount any, method PaymentMethod, reference string, receivedAt time.Time) Payment {
	if !method.IsValid() {
		method = PaymentMethodOther
	}
	return Payment{
		ID:         uuid.New(),
		Amount:     valueobject.RoundToMinor(amount),
		Method:     method,
		Reference:  reference,
		ReceivedAt: receivedAt,
	}
}

// UnmarshalJSON reads a payment leniently: an amount that is not a number or
// numeric string decodes as zero instead of failing the whole document.
func (p *Payment) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         string          `json:"id"`
		Amount     json.RawMessage `json:"amount"`
		Method     PaymentMethod   `json:"method"`
		Reference  string          `json:"reference"`
		ReceivedAt *time.Time      `json:"received_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := uuid.Parse(raw.ID)
	if err != nil {
		id = uuid.Nil
	}
	*p = Payment{
		ID:        id,
		Amount:    valueobject.CoerceAmount(decodeLooseNumber(raw.Amount)),
		Method:    raw.Method,
		Reference: raw.Reference,
	}
	if raw.ReceivedAt != nil {
		p.ReceivedAt = *raw.ReceivedAt
	}
	return nil
}

func decodeLooseNumber(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// Payments is a slice of Payment that implements GORM Scanner/Valuer for JSONB storage
type Payments []Payment

// Value implements driver.Valuer interface for GORM to store as JSONB
func (p Payments) Value() (driver.Value, error) {
	return jsonbValue(p, p == nil)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (p *Payments) Scan(value any) error {
	*p = Payments{}
	return jsonbScan(value, p)
}

// IndexOf returns the position of the payment with the given ID, or -1
func (p Payments) IndexOf(id uuid.UUID) int {
	for i := range p {
		if p[i].ID == id {
			return i
		}
	}
	return -1
}

func jsonbValue(v any, isNil bool) (driver.Value, error) {
	if isNil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonbScan(value any, dest any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("failed to scan JSONB column: unsupported type")
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
