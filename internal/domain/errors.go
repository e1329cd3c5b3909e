package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrEmptyCart means checkout was opened with nothing to buy.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrBusy is returned when an order placement is already running for the session.
	ErrBusy = errors.New("order placement already in progress")
)

// ValidationError is a local rejection raised before any network call.
type ValidationError struct {
	Field   string
	Reason  ValidationReason
	Message string
}

type ValidationReason string

const (
	ReasonMissingField   ValidationReason = "missing_field"
	ReasonInvalidFormat  ValidationReason = "invalid_format"
	ReasonNotServiceable ValidationReason = "not_serviceable"
	ReasonCheckInFlight  ValidationReason = "check_in_flight"
)

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// MissingField builds the error for an empty required field.
func MissingField(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Reason:  ReasonMissingField,
		Message: fmt.Sprintf("Please fill in %s", field),
	}
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// TransportError wraps a failed or rejected backend call.
type TransportError struct {
	Op         string
	StatusCode int
	// Message is the backend-provided reason, empty when none was sent.
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// BackendMessage returns the backend reason carried by err, if any.
func BackendMessage(err error) string {
	var t *TransportError
	if errors.As(err, &t) {
		return t.Message
	}
	return ""
}

// GatewayError covers hosted widget outcomes that end the gateway path without payment.
type GatewayError struct {
	Kind GatewayErrorKind
	Err  error
}

type GatewayErrorKind string

const (
	GatewayLoadFailed GatewayErrorKind = "load_failed"
	GatewayDismissed  GatewayErrorKind = "dismissed"
)

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("payment gateway %s", e.Kind)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// VerificationMismatchError means the backend did not confirm a payment the gateway may have captured.
type VerificationMismatchError struct {
	OrderID        string
	GatewayOrderID string
	Err            error
}

func (e *VerificationMismatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment verification failed for order %s: %v", e.OrderID, e.Err)
	}
	return fmt.Sprintf("payment verification failed for order %s", e.OrderID)
}

func (e *VerificationMismatchError) Unwrap() error { return e.Err }
