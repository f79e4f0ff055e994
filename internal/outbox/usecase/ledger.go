package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/roofline/crmcore/internal/errors"
	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
)

type outboxLedger struct {
	repo       OutboxEventRepository
	maxRetries int
	now        func() time.Time
}

// NewLedger creates a Ledger that stamps maxRetries on every new event.
func NewLedger(repo OutboxEventRepository, maxRetries int) Ledger {
	return &outboxLedger{
		repo:       repo,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// Append records an event as pending and immediately due. When the tenant already
// has an event with the same idempotency key, that event is returned unchanged.
func (l *outboxLedger) Append(
	ctx context.Context,
	tenantID uuid.UUID,
	params outboxDomain.AppendParams,
) (*outboxDomain.Event, error) {
	if err := validateAppend(tenantID, params); err != nil {
		return nil, err
	}

	payload := params.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	now := l.now().UTC()
	event := &outboxDomain.Event{
		ID:             uuid.Must(uuid.NewV7()),
		TenantID:       tenantID,
		AggregateType:  params.AggregateType,
		AggregateID:    params.AggregateID,
		EventType:      params.EventType,
		Payload:        payload,
		IdempotencyKey: params.IdempotencyKey,
		Status:         outboxDomain.StatusPending,
		MaxRetries:     l.maxRetries,
		NextRetryAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	inserted, err := l.repo.Insert(ctx, event)
	if err != nil {
		return nil, err
	}
	if inserted {
		return event, nil
	}
	if params.IdempotencyKey == nil {
		return nil, apperrors.New("outbox event was not inserted")
	}

	return l.repo.GetByIdempotencyKey(ctx, tenantID, *params.IdempotencyKey)
}

// AppendPayload encodes a typed payload and appends it under its own event type.
func (l *outboxLedger) AppendPayload(
	ctx context.Context,
	tenantID uuid.UUID,
	aggregateType, aggregateID string,
	payload outboxDomain.Payload,
	idempotencyKey *string,
) (*outboxDomain.Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode outbox payload")
	}

	return l.Append(ctx, tenantID, outboxDomain.AppendParams{
		AggregateType:  aggregateType,
		AggregateID:    aggregateID,
		EventType:      payload.EventType(),
		Payload:        body,
		IdempotencyKey: idempotencyKey,
	})
}

func validateAppend(tenantID uuid.UUID, params outboxDomain.AppendParams) error {
	switch {
	case tenantID == uuid.Nil:
		return apperrors.Wrap(outboxDomain.ErrInvalidEvent, "tenant id is required")
	case strings.TrimSpace(params.AggregateType) == "":
		return apperrors.Wrap(outboxDomain.ErrInvalidEvent, "aggregate type is required")
	case strings.TrimSpace(params.AggregateID) == "":
		return apperrors.Wrap(outboxDomain.ErrInvalidEvent, "aggregate id is required")
	case strings.TrimSpace(params.EventType) == "":
		return apperrors.Wrap(outboxDomain.ErrInvalidEvent, "event type is required")
	case params.IdempotencyKey != nil && strings.TrimSpace(*params.IdempotencyKey) == "":
		return apperrors.Wrap(outboxDomain.ErrInvalidEvent, "idempotency key must not be blank")
	case len(params.Payload) > 0 && !json.Valid(params.Payload):
		return apperrors.Wrap(outboxDomain.ErrInvalidEvent, "payload must be valid JSON")
	}
	return nil
}
