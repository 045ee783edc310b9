package errors

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is a client input fault. Never retried.
type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

// NewFieldValidationError is shorthand for a single-field failure.
func NewFieldValidationError(field, message string) *ValidationError {
	return NewValidationError(fmt.Sprintf("%s: %s", field, message), ValidationDetail{Field: field, Message: message})
}

func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf, true
	}
	return nil, false
}

type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

func IsForbiddenError(err error) (*ForbiddenError, bool) {
	var fe *ForbiddenError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// CapacityExceededError identifies the first (resource, date) pair in canonical
// order that could not absorb the requested count.
type CapacityExceededError struct {
	ResourceID uuid.UUID
	Date       time.Time
	Requested  int
	Available  int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded for resource %s on %s: requested %d, available %d",
		e.ResourceID.String(), e.Date.Format(time.DateOnly), e.Requested, e.Available)
}

func NewCapacityExceededError(resourceID uuid.UUID, date time.Time, requested, available int) *CapacityExceededError {
	return &CapacityExceededError{
		ResourceID: resourceID,
		Date:       date,
		Requested:  requested,
		Available:  available,
	}
}

func IsCapacityExceededError(err error) (*CapacityExceededError, bool) {
	var ce *CapacityExceededError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

type PaymentMismatchError struct {
	Message               string
	ProviderTransactionID string
	Expected              int64
	Received              int64
}

func (e *PaymentMismatchError) Error() string {
	return e.Message
}

func NewPaymentMismatchError(message, providerTransactionID string, expected, received int64) *PaymentMismatchError {
	return &PaymentMismatchError{
		Message:               message,
		ProviderTransactionID: providerTransactionID,
		Expected:              expected,
		Received:              received,
	}
}

func IsPaymentMismatchError(err error) (*PaymentMismatchError, bool) {
	var pm *PaymentMismatchError
	if errors.As(err, &pm) {
		return pm, true
	}
	return nil, false
}

type InvalidStateTransitionError struct {
	BookingID uuid.UUID
	From      string
	To        string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("booking %s cannot move from %s to %s", e.BookingID.String(), e.From, e.To)
}

func NewInvalidStateTransitionError(bookingID uuid.UUID, from, to string) *InvalidStateTransitionError {
	return &InvalidStateTransitionError{BookingID: bookingID, From: from, To: to}
}

func IsInvalidStateTransitionError(err error) (*InvalidStateTransitionError, bool) {
	var ie *InvalidStateTransitionError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// ConcurrentModificationError is a transient lock or commit conflict. Callers
// retry it internally and never surface it to clients as-is.
type ConcurrentModificationError struct {
	Cause error
}

func (e *ConcurrentModificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("concurrent modification: %v", e.Cause)
	}
	return "concurrent modification"
}

func (e *ConcurrentModificationError) Unwrap() error {
	return e.Cause
}

func NewConcurrentModificationError(cause error) *ConcurrentModificationError {
	return &ConcurrentModificationError{Cause: cause}
}

func IsConcurrentModificationError(err error) (*ConcurrentModificationError, bool) {
	var cm *ConcurrentModificationError
	if errors.As(err, &cm) {
		return cm, true
	}
	return nil, false
}

// TransientError means the outcome may or may not have been committed.
type TransientError struct {
	Message string
	Cause   error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

func NewTransientError(message string, cause error) *TransientError {
	return &TransientError{Message: message, Cause: cause}
}

func IsTransientError(err error) (*TransientError, bool) {
	var te *TransientError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// InconsistencyError marks a state change whose side effect could not be
// applied. It needs reconciliation.
type InconsistencyError struct {
	Message string
	Cause   error
}

func (e *InconsistencyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InconsistencyError) Unwrap() error {
	return e.Cause
}

func NewInconsistencyError(message string, cause error) *InconsistencyError {
	return &InconsistencyError{Message: message, Cause: cause}
}

func IsInconsistencyError(err error) (*InconsistencyError, bool) {
	var ie *InconsistencyError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
