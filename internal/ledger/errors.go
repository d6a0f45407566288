package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError reports a malformed or out-of-range numeric input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AllocationError reports a tender split that cannot be recorded.
type AllocationError struct {
	Tender Tender
	Amount decimal.Decimal
	Reason string
}

func (e *AllocationError) Error() string {
	if e.Tender == "" {
		return "allocation rejected: " + e.Reason
	}
	return fmt.Sprintf("allocation rejected: %s %s: %s", e.Tender, e.Amount.StringFixed(Scale), e.Reason)
}

func invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }
