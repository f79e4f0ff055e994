// Package usecase implements the outbox ledger, its operator operations and the
// dispatcher that delivers due events to downstream senders.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
)

// OutboxEventRepository defines outbox event persistence operations.
type OutboxEventRepository interface {
	Insert(ctx context.Context, event *outboxDomain.Event) (bool, error)
	GetByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*outboxDomain.Event, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*outboxDomain.Event, error)
	List(ctx context.Context, tenantID uuid.UUID, filter outboxDomain.ListFilter) ([]*outboxDomain.Event, error)
	Claim(ctx context.Context, params outboxDomain.ClaimParams) ([]*outboxDomain.Event, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, token string, at time.Time) error
	MarkRetry(
		ctx context.Context,
		id uuid.UUID,
		token string,
		retryCount int,
		nextRetryAt time.Time,
		lastError string,
		at time.Time,
	) error
	MarkFailed(ctx context.Context, id uuid.UUID, token string, retryCount int, lastError string, at time.Time) error
	Cancel(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error
	ArchiveProcessed(ctx context.Context, before time.Time, dryRun bool) (int64, error)
}

// SenderResolver finds the sender for an event type.
type SenderResolver interface {
	Resolve(eventType string) (outboxDomain.Sender, error)
}

// Ledger appends events to the outbox. Both methods join the transaction carried by
// ctx so the event commits if and only if the caller's mutation commits.
type Ledger interface {
	Append(ctx context.Context, tenantID uuid.UUID, params outboxDomain.AppendParams) (*outboxDomain.Event, error)
	AppendPayload(
		ctx context.Context,
		tenantID uuid.UUID,
		aggregateType, aggregateID string,
		payload outboxDomain.Payload,
		idempotencyKey *string,
	) (*outboxDomain.Event, error)
}

// OutboxUseCase defines operator operations on the ledger.
type OutboxUseCase interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*outboxDomain.Event, error)
	List(ctx context.Context, tenantID uuid.UUID, filter outboxDomain.ListFilter) ([]*outboxDomain.Event, error)
	Cancel(ctx context.Context, tenantID, id uuid.UUID) (*outboxDomain.Event, error)
	ArchiveProcessed(ctx context.Context, olderThan time.Duration, dryRun bool) (int64, error)
}
