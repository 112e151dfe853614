package errors

import "fmt"

// ValidationError reports malformed or missing booking input. It is raised
// before any backend mutation is attempted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports that a worker, customer or service type could not
// be resolved.
type NotFoundError struct {
	Resource string
	Message  string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(resource, format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Resource: resource, Message: fmt.Sprintf(format, args...)}
}

// ExternalServiceError reports a failed call against the field-service
// backend or the messaging gateway. StatusCode is 0 for transport-level
// failures (timeouts included).
type ExternalServiceError struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failed (status=%d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

func NewExternalServiceError(operation string, statusCode int, err error) *ExternalServiceError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ExternalServiceError{Operation: operation, StatusCode: statusCode, Message: msg, Err: err}
}

// ConflictError reports that the duplicate-booking guard matched a job that
// cannot be handed back to the caller (it belongs to a different customer).
type ConflictError struct {
	JobID   int64
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(jobID int64, format string, args ...interface{}) *ConflictError {
	return &ConflictError{JobID: jobID, Message: fmt.Sprintf(format, args...)}
}
