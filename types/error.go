package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Graph error codes
const (
	ErrUnknownNodeReference ErrorCode = "UNKNOWN_NODE_REFERENCE"
	ErrCyclicGraph          ErrorCode = "CYCLIC_GRAPH"
	ErrHandlerNotFound      ErrorCode = "HANDLER_NOT_FOUND"
	ErrInvalidNodeParams    ErrorCode = "INVALID_NODE_PARAMS"
)

// Agent error codes
const (
	ErrInvalidAgentConfig ErrorCode = "INVALID_AGENT_CONFIG"
	ErrMissingInputField  ErrorCode = "MISSING_INPUT_FIELD"
	ErrMissingCapability  ErrorCode = "MISSING_CAPABILITY"
)

// LLM error codes
const (
	ErrModelNotFound   ErrorCode = "MODEL_NOT_FOUND"
	ErrUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamError   ErrorCode = "UPSTREAM_ERROR"
	ErrToolLoopLimit   ErrorCode = "TOOL_LOOP_LIMIT"
)

// Service error codes
const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrRateLimited       ErrorCode = "RATE_LIMITED"
	ErrWorkflowNotFound  ErrorCode = "WORKFLOW_NOT_FOUND"
	ErrExecutionNotFound ErrorCode = "EXECUTION_NOT_FOUND"
	ErrConflict          ErrorCode = "CONFLICT"
	ErrExecutionFailed   ErrorCode = "EXECUTION_FAILED"
	ErrInternalError     ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// AsError finds the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// Describe renders err for end users: coded errors anywhere in the chain
// lose their "[CODE] " prefix.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	e, ok := AsError(err)
	if !ok {
		return err.Error()
	}
	plain := e.Message
	if e.Cause != nil {
		plain += ": " + e.Cause.Error()
	}
	if e == err {
		return plain
	}
	return strings.Replace(err.Error(), e.Error(), plain, 1)
}
