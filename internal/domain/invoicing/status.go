package invoicing

// Status is the lifecycle stage of an invoice
type Status string

const (
	StatusDraft Status = "draft" // Editable, not yet visible to the customer
	StatusSent  Status = "sent"  // Issued to the customer, content locked
	StatusPaid  Status = "paid"  // Settled
	StatusVoid  Status = "void"  // Cancelled
)

// AllStatuses lists every lifecycle status in workflow order
func AllStatuses() []Status {
	return []Status{StatusDraft, StatusSent, StatusPaid, StatusVoid}
}

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusVoid:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no transition leaves this status
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusVoid
}

// IsEditable returns true if invoice content may be changed in this status
func (s Status) IsEditable() bool {
	return s == StatusDraft
}

// CanTransitionTo checks if the status can transition to the target status.
// Staying in the same status is always allowed.
func (s Status) CanTransitionTo(target Status) bool {
	if s == target {
		return s.IsValid()
	}
	switch s {
	case StatusDraft:
		return target == StatusSent || target == StatusVoid
	case StatusSent:
		return target == StatusPaid || target == StatusVoid
	case StatusPaid, StatusVoid:
		return false // Terminal states
	}
	return false
}

// AssertValidTransition returns an *InvalidTransitionError unless moving from
// one status to the other is allowed. Same-status requests succeed.
func AssertValidTransition(from, to Status) error {
	if from == to || from.CanTransitionTo(to) {
		return nil
	}
	return NewInvalidTransitionError(from, to)
}

// AssertEditable returns an *InvoiceLockedError unless the status is draft.
func AssertEditable(status Status) error {
	if status.IsEditable() {
		return nil
	}
	return NewInvoiceLockedError(status)
}
