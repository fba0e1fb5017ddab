package entity

import (
	"time"

	"github.com/google/uuid"
)

// DeadLetterStatus tracks an entry through background reprocessing.
type DeadLetterStatus string

const (
	DLQPending   DeadLetterStatus = "PENDING"
	DLQRetrying  DeadLetterStatus = "RETRYING"
	DLQSucceeded DeadLetterStatus = "SUCCEEDED"
	DLQFailed    DeadLetterStatus = "FAILED"
	DLQEscalated DeadLetterStatus = "ESCALATED"
)

// DeadLetterEntry is a failed operation that exhausted all in-line
// recovery and is waiting for the background processor.
type DeadLetterEntry struct {
	Id            uuid.UUID
	OperationType string
	Payload       map[string]interface{}
	ErrorSummary  string
	AttemptCount  int
	MaxAttempts   int
	Status        DeadLetterStatus
	NextRetryAt   *time.Time
	EnqueuedAt    time.Time
	UpdatedAt     time.Time

	// Version backs the single-flight claim: only the processor that
	// wins the versioned status flip may run the entry.
	Version int
}

// Terminal reports whether the entry needs no further processing.
func (e *DeadLetterEntry) Terminal() bool {
	switch e.Status {
	case DLQSucceeded, DLQFailed, DLQEscalated:
		return true
	}
	return false
}

// Due reports whether the entry should be picked up at time now.
func (e *DeadLetterEntry) Due(now time.Time) bool {
	if e.Status != DLQPending && e.Status != DLQRetrying {
		return false
	}
	if e.NextRetryAt == nil {
		return true
	}
	return !now.Before(*e.NextRetryAt)
}
