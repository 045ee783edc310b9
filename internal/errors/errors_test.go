package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError_Creation(t *testing.T) {
	details := []ValidationDetail{
		{Field: "check_in", Message: "must be before check_out"},
		{Field: "party_size", Message: "too many guests"},
	}

	err := NewValidationError("validation failed", details...)

	assert.Equal(t, "validation failed", err.Error())
	assert.Len(t, err.Details, 2)
}

func TestFieldValidationError(t *testing.T) {
	err := NewFieldValidationError("quantity", "must be positive")

	assert.Equal(t, "quantity: must be positive", err.Error())
	require.Len(t, err.Details, 1)
	assert.Equal(t, "quantity", err.Details[0].Field)
}

func TestIsValidationError_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("create booking: %w", NewValidationError("bad input"))

	ve, ok := IsValidationError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "bad input", ve.Message)
}

func TestIsValidationError_WithOtherError(t *testing.T) {
	ve, ok := IsValidationError(errors.New("boom"))
	assert.False(t, ok)
	assert.Nil(t, ve)
}

func TestCapacityExceededError_Message(t *testing.T) {
	resourceID := uuid.MustParse("7b1c7b8a-5f3e-4a56-9a9e-0d4c1f1f0a01")
	date := time.Date(2025, 8, 21, 0, 0, 0, 0, time.UTC)

	err := NewCapacityExceededError(resourceID, date, 3, 2)

	assert.Contains(t, err.Error(), "2025-08-21")
	assert.Contains(t, err.Error(), "available 2")

	ce, ok := IsCapacityExceededError(fmt.Errorf("reserve: %w", err))
	require.True(t, ok)
	assert.Equal(t, 2, ce.Available)
	assert.Equal(t, resourceID, ce.ResourceID)
}

func TestConcurrentModificationError_Unwrap(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := NewConcurrentModificationError(cause)

	assert.True(t, errors.Is(err, cause))
	_, ok := IsConcurrentModificationError(err)
	assert.True(t, ok)
}

func TestTransientError_Unwrap(t *testing.T) {
	cause := errors.New("context deadline exceeded")
	err := NewTransientError("booking outcome unknown", cause)

	assert.Equal(t, "booking outcome unknown: context deadline exceeded", err.Error())
	assert.True(t, errors.Is(err, cause))
}

func TestInvalidStateTransitionError_Message(t *testing.T) {
	id := uuid.New()
	err := NewInvalidStateTransitionError(id, "expired", "cancelled")

	assert.Contains(t, err.Error(), "expired")
	assert.Contains(t, err.Error(), "cancelled")

	ie, ok := IsInvalidStateTransitionError(err)
	require.True(t, ok)
	assert.Equal(t, id, ie.BookingID)
}

func TestPaymentMismatchError(t *testing.T) {
	err := NewPaymentMismatchError("amount mismatch", "chrg_1", 5000, 4000)

	pm, ok := IsPaymentMismatchError(err)
	require.True(t, ok)
	assert.Equal(t, int64(5000), pm.Expected)
	assert.Equal(t, int64(4000), pm.Received)
}

func TestInconsistencyError(t *testing.T) {
	cause := errors.New("slot underflow")
	err := NewInconsistencyError("release failed after status change", cause)

	_, ok := IsInconsistencyError(err)
	assert.True(t, ok)
	assert.True(t, errors.Is(err, cause))
}
