// Package domain holds the error taxonomy shared by services and handlers.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAdminRequired is returned when a session without the admin role
	// calls an administrative operation. The message deliberately says
	// nothing about the target resource.
	ErrAdminRequired = errors.New("admin access required")

	// ErrMeetingNotFound is returned when no meeting matches the given id.
	ErrMeetingNotFound = errors.New("meeting not found")

	// ErrMeetingCanceled is returned when registering for a canceled meeting.
	ErrMeetingCanceled = errors.New("this meeting is canceled")

	// ErrDuplicateSuspected is the soft guard against repeated identical
	// submissions: it fires only past the tolerance threshold.
	ErrDuplicateSuspected = errors.New("record exists, try adding your lastname if you havent")

	// ErrDuplicateRSVP maps the store's unique-index violation on
	// (name, class, meeting).
	ErrDuplicateRSVP = errors.New("an identical registration already exists")

	// ErrRateLimited is returned when either rate-limit identity is over
	// its window limit. Registration is optional, so the message says so.
	ErrRateLimited = errors.New("rate limit exceeded, try again later (registration is optional)")

	// ErrNoUpdateFields is returned by meeting updates that supply no fields.
	ErrNoUpdateFields = errors.New("at least one field must be provided to update")

	// ErrDependency wraps failures of the relational or counter store.
	ErrDependency = errors.New("dependency unavailable")
)

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for the given field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Dependency wraps a store error so handlers can distinguish outages
// from business failures. A nil cause returns nil.
func Dependency(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrDependency, op, cause)
}
