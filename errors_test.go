package corral

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Unwraps(t *testing.T) {
	cause := errors.New("insufficient funds")
	err := NewDomainError(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestResourceError_Unwraps(t *testing.T) {
	cause := errors.New("tx read failed")
	err := NewResourceError(cause)

	assert.ErrorIs(t, err, cause)
}

func TestUnknownTrackedActionError_Message(t *testing.T) {
	err := &UnknownTrackedActionError{ID: ActionID(99)}
	assert.Contains(t, err.Error(), "99")
}
