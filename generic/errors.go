/*
errors.go - Shared error types

PURPOSE:
  Input-validation errors raised by the calendar layer and reused by the
  domain packages. Domain packages add their own structured errors next to
  the operations that raise them (see orders/errors.go).

USAGE:
  if errors.Is(err, generic.ErrValidation) {
      // caller sent something malformed; nothing was changed
  }
*/
package generic

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports malformed caller input: a bad period key, an empty
// or duplicate person name, an out-of-range index.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
