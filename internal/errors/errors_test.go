package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := NoAccess("no shelf key for bob")
	assert.True(t, Is(err, ErrNoAccess))
	assert.False(t, Is(err, ErrDecrypt))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(cause, CodeTransport, "publish failed")

	assert.True(t, Is(err, ErrTransport))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "publish failed")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRetryable(t *testing.T) {
	assert.True(t, CodeTransport.Retryable())
	assert.True(t, CodeInternal.Retryable())
	assert.False(t, CodeDecrypt.Retryable())
	assert.False(t, CodeSignerCapability.Retryable())
	assert.False(t, CodeNoAccess.Retryable())
}

func TestWithDetails(t *testing.T) {
	err := Validation("bad input").WithDetails(map[string]string{"rating": "must be 1-5"})
	assert.Equal(t, CodeValidation, err.Code)
	assert.NotNil(t, err.Details)
	assert.True(t, Is(err, ErrValidation))
}
