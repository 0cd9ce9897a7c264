package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyRegistrationID is returned when registration id is empty.
	ErrEmptyRegistrationID = errors.New("ledger: empty registration id")
	// ErrInvalidRegistrationType is returned for unknown registration types.
	ErrInvalidRegistrationType = errors.New("ledger: invalid registration type")
	// ErrNonPositiveAmount is returned when a payment amount is zero or negative.
	ErrNonPositiveAmount = errors.New("ledger: amount must be positive")
	// ErrNilPayment is returned when saving a nil payment.
	ErrNilPayment = errors.New("ledger: nil payment")
	// ErrBalanceNotFound is returned when a registration has no balance row.
	ErrBalanceNotFound = errors.New("ledger: balance not found")
	// ErrDuplicatePayment is returned when an identical payment was recorded moments ago.
	ErrDuplicatePayment = errors.New("ledger: duplicate payment")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError constructs a validation error for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a missing balance for a registration.
type NotFoundError struct {
	RegistrationID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no payment balance for registration %s", e.RegistrationID)
}

// Is lets errors.Is match ErrBalanceNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrBalanceNotFound
}

// DuplicatePaymentError reports a payment matching one recorded inside the guard window.
type DuplicatePaymentError struct {
	RegistrationID string
	Amount         string
	Method         PaymentMethod
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("a %s payment of %s for registration %s was just recorded; resubmit with force to record it again",
		e.Method, e.Amount, e.RegistrationID)
}

// Is lets errors.Is match ErrDuplicatePayment.
func (e *DuplicatePaymentError) Is(target error) bool {
	return target == ErrDuplicatePayment
}
