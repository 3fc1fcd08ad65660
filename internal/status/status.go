package status

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("checkin: invalid input")
	ErrNotFound            = errors.New("checkin: not found")
	ErrPreconditionFailed  = errors.New("checkin: precondition failed")
	ErrUniquenessViolation = errors.New("checkin: uniqueness violation")
	ErrStoreUnavailable    = errors.New("checkin: store unavailable")
	ErrIssuanceFailed      = errors.New("checkin: issuance failed")

	ErrEventNotFound  = fmt.Errorf("%w: event", ErrNotFound)
	ErrTicketNotFound = fmt.Errorf("%w: ticket", ErrNotFound)
)

// Invalid wraps ErrInvalidInput with a description of the offending field.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Unavailable marks an infrastructure error as a retryable store failure.
// Errors already classified by this package are returned unchanged.
func Unavailable(err error) error {
	if err == nil || Classified(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// Classified reports whether err already belongs to the taxonomy.
func Classified(err error) bool {
	for _, target := range []error{
		ErrInvalidInput,
		ErrNotFound,
		ErrPreconditionFailed,
		ErrUniquenessViolation,
		ErrStoreUnavailable,
		ErrIssuanceFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
