package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents a unique identifier for specific error conditions in nodesync.
type ErrorCode int

const (
	ErrCodeUnknown       ErrorCode = 1000
	ErrCodeConfigInvalid ErrorCode = 1001

	// Target resolution
	ErrCodeReferenceUnavailable ErrorCode = 2001

	// Process lifecycle
	ErrCodeProcessStartFail ErrorCode = 3001
	ErrCodeProcessDied      ErrorCode = 3002
	ErrCodeStartupTimeout   ErrorCode = 3003

	// Status probe
	ErrCodeProbeUnreachable  ErrorCode = 4001
	ErrCodeMalformedResponse ErrorCode = 4002

	// Sync monitoring
	ErrCodeStallTimeout ErrorCode = 5001
	ErrCodeCancelled    ErrorCode = 5002

	// Node config preparation
	ErrCodeNodeConfigFailed ErrorCode = 6001
)

var codeNames = map[ErrorCode]string{
	ErrCodeUnknown:              "unknown",
	ErrCodeConfigInvalid:        "config_invalid",
	ErrCodeReferenceUnavailable: "reference_unavailable",
	ErrCodeProcessStartFail:     "process_start_failed",
	ErrCodeProcessDied:          "process_died",
	ErrCodeStartupTimeout:       "startup_timeout",
	ErrCodeProbeUnreachable:     "probe_unreachable",
	ErrCodeMalformedResponse:    "malformed_response",
	ErrCodeStallTimeout:         "stall_timeout",
	ErrCodeCancelled:            "cancelled",
	ErrCodeNodeConfigFailed:     "node_config_failed",
}

// String returns a stable snake_case name, suitable for metric labels.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code_%d", int(c))
}

// SyncError is a custom error type that provides structured error information,
// including an error code, the operation being performed, and the underlying cause.
type SyncError struct {
	// Code is the specific error code.
	Code ErrorCode
	// Msg is a human-readable description of the error.
	Msg string
	// Operation describes the action being performed when the error occurred.
	Operation string
	// Err is the underlying error that caused this error, if any.
	Err error
}

// Error returns a formatted string representation of the error.
func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %s (cause: %v)", e.Code, e.Operation, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Operation, e.Msg)
}

// Unwrap returns the underlying error.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// New creates a new SyncError with the specified code, operation, message, and underlying error.
func New(code ErrorCode, op, msg string, err error) error {
	return &SyncError{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Err:       err,
	}
}

// CodeOf returns the code of the outermost SyncError in err's chain,
// or ErrCodeUnknown if there is none.
func CodeOf(err error) ErrorCode {
	var se *SyncError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ErrCodeUnknown
}

// HasCode reports whether any SyncError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var se *SyncError
		if !stderrors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Err
	}
	return false
}

// ProcessDied is the cause attached to ErrCodeProcessDied errors.
type ProcessDied struct {
	PID      int
	ExitCode int
}

func (p *ProcessDied) Error() string {
	return fmt.Sprintf("process %d exited with code %d", p.PID, p.ExitCode)
}

// Stall is the cause attached to ErrCodeStallTimeout errors.
type Stall struct {
	BestProgress uint64
	StalledFor   time.Duration
	Timeout      time.Duration
}

func (s *Stall) Error() string {
	return fmt.Sprintf("no progress beyond %d for %s (limit %s)", s.BestProgress, s.StalledFor, s.Timeout)
}

// Personal.AI order the ending
