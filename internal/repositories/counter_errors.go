package repositories

import "fmt"

// CounterErrorCode enumerates failure reasons for sequence operations.
type CounterErrorCode string

const (
	// CounterErrorUnknown represents an unspecified failure.
	CounterErrorUnknown CounterErrorCode = "counter_unknown"
	// CounterErrorInvalidInput indicates the caller supplied invalid arguments.
	CounterErrorInvalidInput CounterErrorCode = "counter_invalid_input"
	// CounterErrorExhausted indicates the counter reached its configured ceiling.
	CounterErrorExhausted CounterErrorCode = "counter_exhausted"
	// CounterErrorUnavailable indicates the backing store could not issue a value.
	CounterErrorUnavailable CounterErrorCode = "counter_unavailable"
)

// CounterError wraps sequence failures with machine readable codes. It satisfies RepositoryError so
// callers can classify it alongside store errors.
type CounterError struct {
	Op      string
	Code    CounterErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CounterError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *CounterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound is always false; counters are created on first use.
func (e *CounterError) IsNotFound() bool { return false }

// IsConflict reports an exhausted sequence.
func (e *CounterError) IsConflict() bool { return e != nil && e.Code == CounterErrorExhausted }

// IsUnavailable reports a store failure.
func (e *CounterError) IsUnavailable() bool {
	return e != nil && (e.Code == CounterErrorUnavailable || e.Code == CounterErrorUnknown)
}

// NewCounterError constructs a typed counter error.
func NewCounterError(code CounterErrorCode, message string, err error) *CounterError {
	if message == "" {
		message = string(code)
	}
	return &CounterError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
