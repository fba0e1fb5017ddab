package resilience

import (
	"errors"
	"fmt"
)

// Kind identifies the structural failure mode of a dependency call.
// Classification keys off this (plus the HTTP status, when present),
// never off the error message text.
type Kind string

const (
	KindTimeout           Kind = "timeout"
	KindNetwork           Kind = "network"
	KindRateLimit         Kind = "rate_limit"
	KindUnavailable       Kind = "unavailable"
	KindAuth              Kind = "auth"
	KindBadRequest        Kind = "bad_request"
	KindUnsupported       Kind = "unsupported_format"
	KindNotFound          Kind = "not_found"
	KindStorage           Kind = "storage"
	KindExhaustedResource Kind = "resource_exhausted"
	KindUnknown           Kind = "unknown"
)

// DependencyError wraps a failure from an external capability (OCR,
// LLM provider, storage, webhook delivery) with enough structure for
// the classifier to make a retry decision.
type DependencyError struct {
	Dependency string // breaker name, e.g. "primary-ai", "ocr-service"
	Kind       Kind
	StatusCode int // 0 when the failure was not an HTTP response
	Err        error
}

func (e *DependencyError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Dependency, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Dependency, e.Kind, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// NewDependencyError builds a DependencyError. Kind may be KindUnknown
// when only a status code is available; the classifier falls back to it.
func NewDependencyError(dependency string, kind Kind, statusCode int, err error) *DependencyError {
	return &DependencyError{Dependency: dependency, Kind: kind, StatusCode: statusCode, Err: err}
}

// LogicError marks input that the system cannot act on without user
// clarification. It never enters the retry engine.
type LogicError struct {
	Reason string
}

func (e *LogicError) Error() string {
	return "logic: " + e.Reason
}

// ErrBreakerOpen is returned by guarded calls when the circuit
// breaker rejects the request without dispatching it.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// ExhaustedError is the typed failure returned when every retry
// attempt has been consumed. It carries the last underlying error so
// callers can decide whether to fall back.
type ExhaustedError struct {
	Operation string
	Attempts  int
	LastErr   error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation %s exhausted after %d attempts: %v", e.Operation, e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}
