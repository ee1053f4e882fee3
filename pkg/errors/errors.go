package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeUnauthorized indicates unauthorized access
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeLocation indicates the caller position could not be obtained
	ErrorTypeLocation ErrorType = "LOCATION"

	// ErrorTypeNetwork indicates a failed call to the backend or a third party
	ErrorTypeNetwork ErrorType = "NETWORK"

	// ErrorTypePayment indicates the payment leg of a booking did not complete
	ErrorTypePayment ErrorType = "PAYMENT"
)

// Reason narrows an ErrorType down to the concrete failure.
type Reason string

const (
	ReasonPermissionDenied    Reason = "permission_denied"
	ReasonPositionUnavailable Reason = "position_unavailable"
	ReasonTimeout             Reason = "timeout"
	ReasonUnsupported         Reason = "unsupported"

	ReasonUnreachable Reason = "unreachable"
	ReasonServerError Reason = "server_error"
	ReasonParseError  Reason = "parse_error"

	ReasonMissingField Reason = "missing_field"
	ReasonInvalid      Reason = "invalid"

	ReasonGatewayFailure Reason = "gateway_failure"
	ReasonCancelled      Reason = "cancelled"
	ReasonPaymentPending Reason = "payment_pending"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Reason  Reason
	Field   string
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	prefix := string(e.Type)
	if e.Reason != "" {
		prefix = fmt.Sprintf("%s(%s)", e.Type, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Reason:  ReasonInvalid,
		Message: message,
	}
}

// NewMissingFieldError creates a validation error naming the missing field
func NewMissingFieldError(field string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Reason:  ReasonMissingField,
		Field:   field,
		Message: fmt.Sprintf("%s is required", field),
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewLocationError creates a new location error
func NewLocationError(reason Reason, message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeLocation,
		Reason:  reason,
		Message: message,
		Err:     err,
	}
}

// NewNetworkError creates a new network error
func NewNetworkError(reason Reason, message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeNetwork,
		Reason:  reason,
		Message: message,
		Err:     err,
	}
}

// NewPaymentError creates a new payment error
func NewPaymentError(reason Reason, message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypePayment,
		Reason:  reason,
		Message: message,
		Err:     err,
	}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}

// ReasonOf returns the reason of the first AppError in err's chain.
func ReasonOf(err error) Reason {
	if appErr, ok := As(err); ok {
		return appErr.Reason
	}
	return ""
}

// Retryable reports whether the user may sensibly repeat the failed action.
func Retryable(err error) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	switch appErr.Type {
	case ErrorTypeNetwork:
		return appErr.Reason != ReasonParseError
	case ErrorTypeLocation:
		return appErr.Reason != ReasonUnsupported
	case ErrorTypePayment:
		return true
	}
	return false
}
