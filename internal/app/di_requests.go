package app

import (
	"fmt"
	"sync"

	idempotencyRepository "github.com/roofline/crmcore/internal/idempotency/repository"
	idempotencyUseCase "github.com/roofline/crmcore/internal/idempotency/usecase"
	"github.com/roofline/crmcore/internal/janitor"
	ratelimitRepository "github.com/roofline/crmcore/internal/ratelimit/repository"
	ratelimitUseCase "github.com/roofline/crmcore/internal/ratelimit/usecase"
)

// redisRateLimitPrefix namespaces rate limit counters in a shared Redis.
const redisRateLimitPrefix = "crmcore:ratelimit:"

type idempotencyComponents struct {
	recordRepository   idempotencyUseCase.RecordRepository
	idempotencyUseCase idempotencyUseCase.IdempotencyUseCase

	recordRepositoryInit   sync.Once
	idempotencyUseCaseInit sync.Once
}

type rateLimitComponents struct {
	windowStore      ratelimitUseCase.WindowStore
	rateLimitUseCase ratelimitUseCase.RateLimitUseCase
	janitor          *janitor.Janitor

	windowStoreInit      sync.Once
	rateLimitUseCaseInit sync.Once
	janitorInit          sync.Once
}

// RecordRepository returns the idempotency record repository based on database driver.
func (c *Container) RecordRepository() (idempotencyUseCase.RecordRepository, error) {
	return resolve(c, &c.recordRepositoryInit, "recordRepository", &c.recordRepository, c.initRecordRepository)
}

// IdempotencyUseCase returns the idempotency store.
func (c *Container) IdempotencyUseCase() (idempotencyUseCase.IdempotencyUseCase, error) {
	return resolve(
		c, &c.idempotencyUseCaseInit, "idempotencyUseCase", &c.idempotencyUseCase, c.initIdempotencyUseCase,
	)
}

// WindowStore returns the rate limit store selected by RATE_LIMIT_STORE.
func (c *Container) WindowStore() (ratelimitUseCase.WindowStore, error) {
	return resolve(c, &c.windowStoreInit, "windowStore", &c.windowStore, c.initWindowStore)
}

// RateLimitUseCase returns the fixed-window rate limiter.
func (c *Container) RateLimitUseCase() (ratelimitUseCase.RateLimitUseCase, error) {
	return resolve(c, &c.rateLimitUseCaseInit, "rateLimitUseCase", &c.rateLimitUseCase, c.initRateLimitUseCase)
}

// Janitor returns the worker that purges expired idempotency records and rate limit windows.
func (c *Container) Janitor() (*janitor.Janitor, error) {
	return resolve(c, &c.janitorInit, "janitor", &c.janitor, func() (*janitor.Janitor, error) {
		idempotency, err := c.IdempotencyUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get idempotency use case for janitor: %w", err)
		}
		rateLimits, err := c.RateLimitUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get rate limit use case for janitor: %w", err)
		}

		return janitor.New(janitor.Config{
			Interval:           c.config.JanitorInterval,
			RateLimitRetention: c.config.RateLimitRetention,
		}, idempotency, rateLimits, c.Logger()), nil
	})
}

func (c *Container) initRecordRepository() (idempotencyUseCase.RecordRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for idempotency repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return idempotencyRepository.NewPostgreSQLRecordRepository(db), nil
	case "mysql":
		return idempotencyRepository.NewMySQLRecordRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initIdempotencyUseCase() (idempotencyUseCase.IdempotencyUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for idempotency use case: %w", err)
	}
	repo, err := c.RecordRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get record repository for idempotency use case: %w", err)
	}

	baseUseCase := idempotencyUseCase.NewIdempotencyUseCase(
		txManager, repo, c.config.IdempotencyLockTimeout, c.config.IdempotencyTTL, c.Logger(),
	)

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for idempotency use case: %w", err)
	}
	return idempotencyUseCase.NewIdempotencyUseCaseWithMetrics(baseUseCase, businessMetrics), nil
}

func (c *Container) initWindowStore() (ratelimitUseCase.WindowStore, error) {
	switch c.config.RateLimitStore {
	case "memory":
		return ratelimitRepository.NewMemoryWindowStore(), nil
	case "redis":
		client, err := c.RedisClient()
		if err != nil {
			return nil, fmt.Errorf("failed to get redis client for rate limit store: %w", err)
		}
		return ratelimitRepository.NewRedisWindowStore(client, redisRateLimitPrefix), nil
	case "database", "":
	default:
		return nil, fmt.Errorf("unsupported rate limit store: %s", c.config.RateLimitStore)
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for rate limit store: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return ratelimitRepository.NewPostgreSQLWindowStore(db), nil
	case "mysql":
		return ratelimitRepository.NewMySQLWindowStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initRateLimitUseCase() (ratelimitUseCase.RateLimitUseCase, error) {
	store, err := c.WindowStore()
	if err != nil {
		return nil, err
	}

	baseUseCase := ratelimitUseCase.NewRateLimitUseCase(store, c.Logger())

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for rate limit use case: %w", err)
	}
	return ratelimitUseCase.NewRateLimitUseCaseWithMetrics(baseUseCase, businessMetrics), nil
}
