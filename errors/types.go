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

	// Snapshot and source errors
	ErrCodeSnapshotMalformed ErrorCode = "SNAPSHOT_MALFORMED"
	ErrCodeSourceFailed      ErrorCode = "SOURCE_FAILED"

	// Effect channel errors
	ErrCodeChannelFailed ErrorCode = "CHANNEL_FAILED"
	ErrCodeNotifyFailed  ErrorCode = "NOTIFY_FAILED"

	// Daemon errors
	ErrCodeDaemonNotRunning ErrorCode = "DAEMON_NOT_RUNNING"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// PresenceError represents a structured error with context
type PresenceError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *PresenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *PresenceError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *PresenceError) WithDetail(key string, value interface{}) *PresenceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *PresenceError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new PresenceError
func New(code ErrorCode, message string) *PresenceError {
	return &PresenceError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a PresenceError
func Wrap(err error, code ErrorCode, message string) *PresenceError {
	return &PresenceError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is, or wraps, a PresenceError with the given code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error, walking the Unwrap chain
func GetCode(err error) ErrorCode {
	for err != nil {
		if presenceErr, ok := err.(*PresenceError); ok {
			return presenceErr.Code
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = unwrapper.Unwrap()
	}
	return ""
}
