package domain

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// Message is what a sender receives for one delivery attempt.
type Message struct {
	EventID        uuid.UUID
	TenantID       uuid.UUID
	AggregateType  string
	AggregateID    string
	EventType      string
	Payload        json.RawMessage
	IdempotencyKey *string
	Attempt        int
}

// NewMessage builds the delivery message for an event's next attempt.
func NewMessage(e *Event) Message {
	return Message{
		EventID:        e.ID,
		TenantID:       e.TenantID,
		AggregateType:  e.AggregateType,
		AggregateID:    e.AggregateID,
		EventType:      e.EventType,
		Payload:        e.Payload,
		IdempotencyKey: e.IdempotencyKey,
		Attempt:        e.RetryCount + 1,
	}
}

// DeduplicationKey returns the key downstream consumers should deduplicate on:
// the idempotency key when present, otherwise the event id.
func (m Message) DeduplicationKey() string {
	if m.IdempotencyKey != nil && *m.IdempotencyKey != "" {
		return *m.IdempotencyKey
	}
	return m.EventID.String()
}

// Sender delivers messages to one downstream channel. Any returned error is
// retried with backoff unless it is wrapped with Permanent.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// PermanentError marks a delivery failure that retrying cannot fix. Its text is the
// sender's own, so the stored last error reads the same either way.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so the dispatcher fails the event without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent)
}
