package utils

import "fmt"

// ValidationError rejects malformed or out-of-range input. The offending
// record is dropped and the batch continues.
type ValidationError struct {
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Key == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NewKeyedValidationError attaches the record key so replays can target the
// offending record.
func NewKeyedValidationError(key, format string, args ...interface{}) error {
	return &ValidationError{Key: key, Message: fmt.Sprintf(format, args...)}
}

// DataQualityWarning records a recoverable data issue: duplicate-key
// conflicts, missing public-betting data, unmatched side pairs. Processing
// continues.
type DataQualityWarning struct {
	Key     string
	Message string
}

func (e *DataQualityWarning) Error() string {
	return fmt.Sprintf("data quality: %s: %s", e.Key, e.Message)
}

// NewDataQualityWarning creates a DataQualityWarning for the given key.
func NewDataQualityWarning(key, format string, args ...interface{}) error {
	return &DataQualityWarning{Key: key, Message: fmt.Sprintf(format, args...)}
}

// InvariantViolation signals a programming error, such as a mismatched
// market/side pairing handed to the movement calculator. Fatal for the
// current unit, never silently skipped.
type InvariantViolation struct {
	Message string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Message)
}

// NewInvariantViolation creates an InvariantViolation with a formatted
// message.
func NewInvariantViolation(format string, args ...interface{}) error {
	return &InvariantViolation{Message: fmt.Sprintf(format, args...)}
}

// PersistenceError surfaces a write failure after retries are exhausted.
// Fatal for the batch; carries the offending key so the replay is targeted.
type PersistenceError struct {
	Key     string
	Attempt int
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed for %s after %d attempts: %v", e.Key, e.Attempt, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps a write failure with its key and attempt count.
func NewPersistenceError(key string, attempts int, err error) error {
	return &PersistenceError{Key: key, Attempt: attempts, Err: err}
}
