package vicare

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Fault classes reported by the ViCare API client. Callers classify
// failures with errors.Is; the concrete *APIError or *FeatureError
// carries the detail.
var (
	// ErrNotSupported is returned when a device does not expose a feature,
	// a property of it, or a command on it.
	ErrNotSupported = errors.New("vicare: feature not supported")

	// ErrRateLimit is returned when the API quota is exhausted.
	ErrRateLimit = errors.New("vicare: rate limit exceeded")

	// ErrInvalidData is returned when the API answers with a payload that
	// cannot be decoded or has an unexpected shape.
	ErrInvalidData = errors.New("vicare: invalid data")

	// ErrCommandRejected is returned when the API refuses a command.
	ErrCommandRejected = errors.New("vicare: command rejected")

	// ErrServer is returned for 5xx responses.
	ErrServer = errors.New("vicare: internal server error")

	// ErrConnection is returned when the API cannot be reached.
	ErrConnection = errors.New("vicare: connection failed")

	// ErrTimeout is returned when a request exceeds its deadline.
	ErrTimeout = errors.New("vicare: request timed out")

	// ErrUnauthorized is returned when the access token is refused.
	ErrUnauthorized = errors.New("vicare: unauthorized")

	// ErrInvalidParameter is returned when a command argument violates the
	// constraints published by the device.
	ErrInvalidParameter = errors.New("vicare: invalid command parameter")
)

// APIError describes a failed HTTP exchange with the ViCare API.
type APIError struct {
	Kind       error
	StatusCode int
	ErrorType  string
	Message    string
	// LimitReset is set for rate-limit faults.
	LimitReset time.Time
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Kind.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.ErrorType != "" {
		msg += " " + e.ErrorType
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if !e.LimitReset.IsZero() {
		msg += fmt.Sprintf(", limit resets at %s", e.LimitReset.UTC().Format(time.RFC3339))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the fault class and the transport cause.
func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// FeatureError reports a missing or malformed feature, property or command.
type FeatureError struct {
	Feature  string
	Property string
	Kind     error
}

func (e *FeatureError) Error() string {
	if e.Property == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Feature)
	}
	return fmt.Sprintf("%s: %s.%s", e.Kind, e.Feature, e.Property)
}

func (e *FeatureError) Unwrap() error { return e.Kind }

func notSupported(feature, property string) error {
	return &FeatureError{Feature: feature, Property: property, Kind: ErrNotSupported}
}

func invalidData(feature, property string) error {
	return &FeatureError{Feature: feature, Property: property, Kind: ErrInvalidData}
}

// kindForStatus maps an HTTP status to a fault class. Commands map other
// 4xx responses to ErrCommandRejected.
func kindForStatus(status int, command bool) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status >= http.StatusInternalServerError:
		return ErrServer
	case command && status >= http.StatusBadRequest:
		return ErrCommandRejected
	case status == http.StatusNotFound:
		return ErrNotSupported
	default:
		return ErrInvalidData
	}
}
