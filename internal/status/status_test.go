package status

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundHierarchy(t *testing.T) {
	assert.ErrorIs(t, ErrEventNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrTicketNotFound, ErrNotFound)
	assert.NotErrorIs(t, ErrEventNotFound, ErrTicketNotFound)
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("dial tcp 127.0.0.1:6379: connection refused")

	err := Unavailable(cause)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))

	assert.ErrorIs(t, Unavailable(context.DeadlineExceeded), context.DeadlineExceeded)
	assert.Nil(t, Unavailable(nil))
}

func TestUnavailable_KeepsClassifiedErrors(t *testing.T) {
	tests := []error{
		ErrTicketNotFound,
		ErrPreconditionFailed,
		ErrUniquenessViolation,
		Invalid("secret is empty"),
	}

	for _, err := range tests {
		t.Run(err.Error(), func(t *testing.T) {
			assert.Same(t, err, Unavailable(err))
			assert.False(t, IsRetryable(Unavailable(err)))
		})
	}
}

func TestInvalid(t *testing.T) {
	err := Invalid("attendee_name %s", "is required")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "checkin: invalid input: attendee_name is required", err.Error())
}
