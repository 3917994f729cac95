package push_service

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind string

const (
	KindValidation          Kind = "VALIDATION_ERROR"
	KindNoRecipient         Kind = "NO_RECIPIENT"
	KindRegistryUnavailable Kind = "REGISTRY_UNAVAILABLE"
	KindDeliveryUnavailable Kind = "DELIVERY_UNAVAILABLE"
)

// Error is the error type returned by registry and dispatch operations.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrValidation) works
// for every validation failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNoRecipient         = &Error{Kind: KindNoRecipient}
	ErrRegistryUnavailable = &Error{Kind: KindRegistryUnavailable}
	ErrDeliveryUnavailable = &Error{Kind: KindDeliveryUnavailable}
)

func validationError(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func noRecipientError(format string, args ...interface{}) error {
	return &Error{Kind: KindNoRecipient, Message: fmt.Sprintf(format, args...)}
}

func registryUnavailable(op string, err error) error {
	return &Error{Kind: KindRegistryUnavailable, Message: "token registry " + op + " failed", Err: err}
}

func deliveryUnavailable(message string, err error) error {
	return &Error{Kind: KindDeliveryUnavailable, Message: message, Err: err}
}

// KindOf returns the kind of a registry/dispatch error, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// NewValidationError builds a validation error for adapters that check input
// before reaching the registry or dispatcher.
func NewValidationError(format string, args ...interface{}) error {
	return validationError(format, args...)
}
