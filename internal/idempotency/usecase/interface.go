// Package usecase implements the idempotency store that deduplicates retried
// mutation requests per tenant and key.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	idempotencyDomain "github.com/roofline/crmcore/internal/idempotency/domain"
)

// RecordRepository defines idempotency record persistence.
type RecordRepository interface {
	// CreateIfAbsent inserts the record and returns false when the key is taken.
	CreateIfAbsent(ctx context.Context, record *idempotencyDomain.Record) (bool, error)
	GetForUpdate(ctx context.Context, tenantID uuid.UUID, key string) (*idempotencyDomain.Record, error)
	Update(ctx context.Context, record *idempotencyDomain.Record) error
	// DeleteInProgress removes the record only while it is in progress with hash.
	DeleteInProgress(ctx context.Context, tenantID uuid.UUID, key, hash string) (bool, error)
	// DeleteExpired removes completed records expired before and in-progress
	// records whose lock lapsed before.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// IdempotencyUseCase defines the idempotency store operations.
type IdempotencyUseCase interface {
	// Begin claims the key for the request identified by hash.
	Begin(ctx context.Context, tenantID uuid.UUID, key, hash string) (*idempotencyDomain.BeginResult, error)
	// Complete stores the response of a fresh request so retries replay it.
	Complete(
		ctx context.Context,
		tenantID uuid.UUID,
		key, hash string,
		response []byte,
		contentType string,
		statusCode int,
		ttl time.Duration,
	) error
	// Release drops the claim of a fresh request that failed, letting the client retry.
	Release(ctx context.Context, tenantID uuid.UUID, key, hash string) error
	// PurgeExpired deletes records that no longer bind their key.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}
