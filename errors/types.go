package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Symlink and watch errors
	ErrCodeSymlinkUnresolved ErrorCode = "SYMLINK_UNRESOLVED"
	ErrCodeWatchBindFailed   ErrorCode = "WATCH_BIND_FAILED"

	// Host errors
	ErrCodeProjectNotFound ErrorCode = "PROJECT_NOT_FOUND"
	ErrCodeCommandFailed   ErrorCode = "COMMAND_FAILED"
	ErrCodeAlreadyRunning  ErrorCode = "ALREADY_RUNNING"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// LinkwatchError represents a structured error with context
type LinkwatchError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *LinkwatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *LinkwatchError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *LinkwatchError) WithDetail(key string, value interface{}) *LinkwatchError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *LinkwatchError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new LinkwatchError
func New(code ErrorCode, message string) *LinkwatchError {
	return &LinkwatchError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a LinkwatchError
func Wrap(err error, code ErrorCode, message string) *LinkwatchError {
	return &LinkwatchError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific LinkwatchError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	lwErr, ok := err.(*LinkwatchError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return lwErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	lwErr, ok := err.(*LinkwatchError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return lwErr.Code
}

// As returns the first LinkwatchError in err's chain, if any.
func As(err error) (*LinkwatchError, bool) {
	for err != nil {
		if lwErr, ok := err.(*LinkwatchError); ok {
			return lwErr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
