// Package dto provides data transfer objects for the outbox operator API.
package dto

import (
	"encoding/json"
	"time"

	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
)

// EventResponse represents an outbox event in API responses.
type EventResponse struct {
	ID             string          `json:"id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	Status         string          `json:"status"`
	RetryCount     int             `json:"retry_count"`
	MaxRetries     int             `json:"max_retries"`
	NextRetryAt    time.Time       `json:"next_retry_at"`
	LastError      *string         `json:"last_error,omitempty"`
	LeaseUntil     *time.Time      `json:"lease_until,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
}

// ListEventsResponse represents a page of outbox events.
type ListEventsResponse struct {
	Data []EventResponse `json:"data"`
}

// MapEventToResponse converts a domain event to an API response.
func MapEventToResponse(event *outboxDomain.Event) EventResponse {
	return EventResponse{
		ID:             event.ID.String(),
		AggregateType:  event.AggregateType,
		AggregateID:    event.AggregateID,
		EventType:      event.EventType,
		Payload:        event.Payload,
		IdempotencyKey: event.IdempotencyKey,
		Status:         string(event.Status),
		RetryCount:     event.RetryCount,
		MaxRetries:     event.MaxRetries,
		NextRetryAt:    event.NextRetryAt,
		LastError:      event.LastError,
		LeaseUntil:     event.LeaseUntil,
		CreatedAt:      event.CreatedAt,
		UpdatedAt:      event.UpdatedAt,
		ProcessedAt:    event.ProcessedAt,
	}
}

// MapEventsToListResponse converts domain events to a list response.
func MapEventsToListResponse(events []*outboxDomain.Event) ListEventsResponse {
	data := make([]EventResponse, 0, len(events))
	for _, event := range events {
		data = append(data, MapEventToResponse(event))
	}
	return ListEventsResponse{Data: data}
}
