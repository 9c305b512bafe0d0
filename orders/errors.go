package orders

import (
	"errors"
	"fmt"

	"github.com/warp/order-sheet/generic"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrIneligibleDate is returned when a single cell is edited on a weekend,
	// a holiday or a day in the past.
	ErrIneligibleDate = errors.New("date is not editable")

	// ErrCapability is returned when someone without the special capability
	// asks for the special mark.
	ErrCapability = errors.New("person cannot use this mark")
)

// IneligibleReason says why a date is locked.
type IneligibleReason string

const (
	ReasonWeekend IneligibleReason = "weekend"
	ReasonHoliday IneligibleReason = "holiday"
	ReasonPast    IneligibleReason = "past"
)

// IneligibleDateError carries the locked date and the first rule that locked it.
type IneligibleDateError struct {
	Date    generic.Date
	Reason  IneligibleReason
	Holiday string // set when Reason is ReasonHoliday
}

func (e *IneligibleDateError) Error() string {
	if e.Holiday != "" {
		return fmt.Sprintf("%s is not editable: %s (%s)", e.Date, e.Reason, e.Holiday)
	}
	return fmt.Sprintf("%s is not editable: %s", e.Date, e.Reason)
}

func (e *IneligibleDateError) Unwrap() error {
	return ErrIneligibleDate
}

// CapabilityError names the person and the mark they may not use.
type CapabilityError struct {
	Person string
	Mark   Mark
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s cannot use mark %q", e.Person, e.Mark)
}

func (e *CapabilityError) Unwrap() error {
	return ErrCapability
}

// IsClientError returns true if the error was caused by the caller's input.
// No state was changed when a client error is returned.
func IsClientError(err error) bool {
	return errors.Is(err, generic.ErrValidation) ||
		errors.Is(err, ErrIneligibleDate) ||
		errors.Is(err, ErrCapability)
}

func invalid(field, value, reason string) error {
	return &generic.ValidationError{Field: field, Value: value, Reason: reason}
}
