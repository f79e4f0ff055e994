package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/crmcore/internal/database"
	idempotencyDomain "github.com/roofline/crmcore/internal/idempotency/domain"
)

type idempotencyUseCase struct {
	txManager   database.TxManager
	repo        RecordRepository
	lockTimeout time.Duration
	defaultTTL  time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewIdempotencyUseCase creates the idempotency store. lockTimeout bounds how long
// an in-progress claim blocks duplicates; defaultTTL is used when Complete gets none.
func NewIdempotencyUseCase(
	txManager database.TxManager,
	repo RecordRepository,
	lockTimeout, defaultTTL time.Duration,
	logger *slog.Logger,
) IdempotencyUseCase {
	return &idempotencyUseCase{
		txManager:   txManager,
		repo:        repo,
		lockTimeout: lockTimeout,
		defaultTTL:  defaultTTL,
		logger:      logger,
		now:         time.Now,
	}
}

func (uc *idempotencyUseCase) Begin(
	ctx context.Context,
	tenantID uuid.UUID,
	key, hash string,
) (*idempotencyDomain.BeginResult, error) {
	if err := idempotencyDomain.ValidateKey(key); err != nil {
		return nil, err
	}

	var result *idempotencyDomain.BeginResult

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		now := uc.now().UTC()
		claim := &idempotencyDomain.Record{
			TenantID:    tenantID,
			Key:         key,
			RequestHash: hash,
			Status:      idempotencyDomain.StatusInProgress,
			LockedUntil: now.Add(uc.lockTimeout),
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		inserted, err := uc.repo.CreateIfAbsent(ctx, claim)
		if err != nil {
			return err
		}
		if inserted {
			result = &idempotencyDomain.BeginResult{Outcome: idempotencyDomain.OutcomeFresh}
			return nil
		}

		existing, err := uc.repo.GetForUpdate(ctx, tenantID, key)
		if err != nil {
			return err
		}

		if !existing.IsLive(now) {
			// Expired response or abandoned claim: the key is free again.
			if err := uc.repo.Update(ctx, claim); err != nil {
				return err
			}
			uc.logger.Info("idempotency key taken over",
				slog.String("tenant_id", tenantID.String()),
				slog.String("previous_status", string(existing.Status)),
			)
			result = &idempotencyDomain.BeginResult{Outcome: idempotencyDomain.OutcomeFresh}
			return nil
		}

		switch {
		case !existing.Matches(hash):
			result = &idempotencyDomain.BeginResult{Outcome: idempotencyDomain.OutcomeConflict}
		case existing.IsCompleted():
			result = &idempotencyDomain.BeginResult{Outcome: idempotencyDomain.OutcomeReplayed, Record: existing}
		default:
			result = &idempotencyDomain.BeginResult{
				Outcome:    idempotencyDomain.OutcomeInFlight,
				RetryAfter: existing.LockedUntil.Sub(now),
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *idempotencyUseCase) Complete(
	ctx context.Context,
	tenantID uuid.UUID,
	key, hash string,
	response []byte,
	contentType string,
	statusCode int,
	ttl time.Duration,
) error {
	if ttl <= 0 {
		ttl = uc.defaultTTL
	}

	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		record, err := uc.repo.GetForUpdate(ctx, tenantID, key)
		if err != nil {
			return err
		}
		if record.IsCompleted() || !record.Matches(hash) {
			return idempotencyDomain.ErrNotOwner
		}

		now := uc.now().UTC()
		expiresAt := now.Add(ttl)
		record.Status = idempotencyDomain.StatusCompleted
		record.ResponseBody = response
		record.ContentType = contentType
		record.StatusCode = statusCode
		record.ExpiresAt = &expiresAt
		record.UpdatedAt = now
		return uc.repo.Update(ctx, record)
	})
}

func (uc *idempotencyUseCase) Release(ctx context.Context, tenantID uuid.UUID, key, hash string) error {
	deleted, err := uc.repo.DeleteInProgress(ctx, tenantID, key, hash)
	if err != nil {
		return err
	}
	if !deleted {
		return idempotencyDomain.ErrNotOwner
	}
	return nil
}

func (uc *idempotencyUseCase) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	count, err := uc.repo.DeleteExpired(ctx, before)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		uc.logger.Info("purged idempotency records", slog.Int64("count", count))
	}
	return count, nil
}
