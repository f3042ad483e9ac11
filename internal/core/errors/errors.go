package errors

import (
	"errors"
	"fmt"
)

const (
	HttpInternalError         = "internal_error"
	HttpInvalidJsonError      = "invalid_json"
	HttpInvalidRequestError   = "invalid_request"
	HttpQueueUnavailableError = "queue_unavailable"
)

// ErrorResponse is the error response body for the HTTP API.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}

// ConfigurationError reports an invalid dimension configuration.
// It is fatal at startup and never produced per bucket.
type ConfigurationError struct {
	Dimension string
	Value     string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("dimension %q value %q: %s", e.Dimension, e.Value, e.Reason)
	}
	return fmt.Sprintf("dimension %q: %s", e.Dimension, e.Reason)
}

// MalformedMessageError marks a queue payload that can never be processed.
// Such messages are rejected without requeue and without dead-lettering.
type MalformedMessageError struct {
	Reason string
}

func (e *MalformedMessageError) Error() string {
	return "malformed message: " + e.Reason
}

// Malformedf builds a MalformedMessageError.
func Malformedf(format string, args ...interface{}) error {
	return &MalformedMessageError{Reason: fmt.Sprintf(format, args...)}
}

// ConnectivityError wraps a failure to reach the queue or the database.
type ConnectivityError struct {
	Target string
	Err    error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Target, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// AggregationError wraps a query or transaction failure during a crunch.
// Transient errors are requeued, everything else is dead-lettered.
type AggregationError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *AggregationError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, kind, e.Err)
}

func (e *AggregationError) Unwrap() error { return e.Err }

// IsTransient reports whether err carries an AggregationError marked transient.
func IsTransient(err error) bool {
	var aggErr *AggregationError
	if errors.As(err, &aggErr) {
		return aggErr.Transient
	}
	return false
}

// IsMalformed reports whether err is a MalformedMessageError.
func IsMalformed(err error) bool {
	var m *MalformedMessageError
	return errors.As(err, &m)
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}
