package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDraftNotFound is returned when a draft id does not exist.
	ErrDraftNotFound = errors.New("draft not found")
	// ErrWorkoutNotFound is returned when a workout cannot be located.
	ErrWorkoutNotFound = errors.New("workout not found")
	// ErrForbidden is returned when a resource exists but belongs to another owner.
	ErrForbidden = errors.New("resource belongs to another owner")
	// ErrIdentityConflict indicates a caller-supplied child id is already in use.
	ErrIdentityConflict = errors.New("identifier already in use")
)

// ValidationError rejects malformed input before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
