package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypePrecondition ErrorType = "precondition"
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeUpstream     ErrorType = "upstream"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeMalformed    ErrorType = "malformed"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeStore        ErrorType = "store"
	ErrorTypeIO           ErrorType = "io"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func PreconditionError(message string) *DomainError {
	return NewError(ErrorTypePrecondition, message, nil)
}

func NetworkError(message string, err error) *DomainError {
	return NewError(ErrorTypeNetwork, message, err)
}

// UpstreamError records a non-success HTTP status from a remote service.
func UpstreamError(message string, statusCode int) *DomainError {
	e := NewError(ErrorTypeUpstream, message, nil)
	e.StatusCode = statusCode
	return e
}

func RateLimitError(message string) *DomainError {
	e := NewError(ErrorTypeRateLimit, message, nil)
	e.StatusCode = 429
	return e
}

func MalformedError(message string, err error) *DomainError {
	return NewError(ErrorTypeMalformed, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func StoreError(message string, err error) *DomainError {
	return NewError(ErrorTypeStore, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// TypeOf returns the ErrorType of the first DomainError in err's chain,
// or an empty string when there is none.
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// IsType reports whether err carries a DomainError of the given type.
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}
