// Package domain defines the outbox ledger entities: events, delivery messages
// and the retry policy.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an outbox event.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further delivery is attempted in status s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Event is a durable record of a domain event awaiting delivery.
//
// Events are written in the same transaction as the mutation they describe and
// afterwards only the dispatcher (and operator cancellation) changes them.
// A completed event never changes again.
type Event struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	AggregateType  string
	AggregateID    string
	EventType      string
	Payload        json.RawMessage
	IdempotencyKey *string
	Status         Status
	RetryCount     int
	MaxRetries     int
	NextRetryAt    time.Time
	LastError      *string
	ClaimedBy      *string
	LeaseUntil     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ProcessedAt    *time.Time
}

// CanCancel reports whether an operator may cancel the event. Events being
// delivered cannot be canceled mid-flight.
func (e *Event) CanCancel() bool {
	return e.Status == StatusPending || e.Status == StatusFailed
}

// Payload is a typed event body. EventType names the event in the ledger and
// selects the sender that delivers it.
type Payload interface {
	EventType() string
}

// AppendParams describes an event to append to the ledger.
type AppendParams struct {
	AggregateType  string
	AggregateID    string
	EventType      string
	Payload        json.RawMessage
	IdempotencyKey *string
}

// ClaimParams describes a claim of due events by one dispatcher.
type ClaimParams struct {
	Token      string
	Now        time.Time
	LeaseUntil time.Time
	Limit      int
}

// ListFilter narrows operator listings.
type ListFilter struct {
	Status *Status
	Offset int
	Limit  int
}
