package invoicing

import (
	"fmt"
	"net/http"

	"github.com/shopdesk/backend/internal/domain/shared"
)

// Error codes surfaced to API clients
const (
	CodeInvalidTransition = "INVALID_INVOICE_TRANSITION"
	CodeInvoiceLocked     = "INVOICE_LOCKED"
)

var (
	_ shared.CodedError = (*InvalidTransitionError)(nil)
	_ shared.CodedError = (*InvoiceLockedError)(nil)
)

// InvalidTransitionError rejects a lifecycle change that is not in the
// transition table. It is permanent for the given state.
type InvalidTransitionError struct {
	From Status `json:"from"`
	To   Status `json:"to"`
}

// NewInvalidTransitionError creates an InvalidTransitionError
func NewInvalidTransitionError(from, to Status) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, To: to}
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invoice cannot transition from %q to %q", e.From, e.To)
}

func (e *InvalidTransitionError) ErrorCode() string {
	return CodeInvalidTransition
}

func (e *InvalidTransitionError) HTTPStatus() int {
	return http.StatusBadRequest
}

// InvoiceLockedError rejects a content change on an invoice that has left draft.
type InvoiceLockedError struct {
	Status Status `json:"status"`
}

// NewInvoiceLockedError creates an InvoiceLockedError
func NewInvoiceLockedError(status Status) *InvoiceLockedError {
	return &InvoiceLockedError{Status: status}
}

func (e *InvoiceLockedError) Error() string {
	return fmt.Sprintf("invoice is locked for editing in %q status", e.Status)
}

func (e *InvoiceLockedError) ErrorCode() string {
	return CodeInvoiceLocked
}

func (e *InvoiceLockedError) HTTPStatus() int {
	return http.StatusBadRequest
}
