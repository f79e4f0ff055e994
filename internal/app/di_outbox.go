package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	outboxDomain "github.com/roofline/crmcore/internal/outbox/domain"
	outboxHTTP "github.com/roofline/crmcore/internal/outbox/http"
	outboxRepository "github.com/roofline/crmcore/internal/outbox/repository"
	"github.com/roofline/crmcore/internal/outbox/sender"
	outboxUseCase "github.com/roofline/crmcore/internal/outbox/usecase"
)

// Sender names accepted in OUTBOX_ROUTES and OUTBOX_DEFAULT_SENDER.
const (
	SenderLog    = "log"
	SenderKafka  = "kafka"
	SenderRedis  = "redis"
	SenderPubSub = "pubsub"
)

type outboxComponents struct {
	redisClient      *redis.Client
	outboxRepository outboxUseCase.OutboxEventRepository
	ledger           outboxUseCase.Ledger
	outboxUseCase    outboxUseCase.OutboxUseCase
	senderRegistry   *sender.Registry
	dispatcher       *outboxUseCase.Dispatcher
	outboxHandler    *outboxHTTP.OutboxHandler

	redisClientInit      sync.Once
	outboxRepositoryInit sync.Once
	ledgerInit           sync.Once
	outboxUseCaseInit    sync.Once
	senderRegistryInit   sync.Once
	dispatcherInit       sync.Once
	outboxHandlerInit    sync.Once
}

// RedisClient returns the shared Redis client. It fails when REDIS_ADDR is unset.
func (c *Container) RedisClient() (*redis.Client, error) {
	return resolve(c, &c.redisClientInit, "redisClient", &c.redisClient, func() (*redis.Client, error) {
		if c.config.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is not configured")
		}

		client := redis.NewClient(&redis.Options{
			Addr:     c.config.RedisAddr,
			Password: c.config.RedisPassword,
			DB:       c.config.RedisDB,
		})
		c.onShutdown(func(context.Context) error {
			if err := client.Close(); err != nil {
				return fmt.Errorf("redis close: %w", err)
			}
			return nil
		})
		return client, nil
	})
}

// OutboxRepository returns the outbox event repository based on database driver.
func (c *Container) OutboxRepository() (outboxUseCase.OutboxEventRepository, error) {
	return resolve(c, &c.outboxRepositoryInit, "outboxRepository", &c.outboxRepository, c.initOutboxRepository)
}

// Ledger returns the outbox ledger used by the pipeline to append events.
func (c *Container) Ledger() (outboxUseCase.Ledger, error) {
	return resolve(c, &c.ledgerInit, "ledger", &c.ledger, func() (outboxUseCase.Ledger, error) {
		repo, err := c.OutboxRepository()
		if err != nil {
			return nil, fmt.Errorf("failed to get outbox repository for ledger: %w", err)
		}
		return outboxUseCase.NewLedger(repo, c.config.OutboxMaxRetries), nil
	})
}

// OutboxUseCase returns the operator use case on the ledger.
func (c *Container) OutboxUseCase() (outboxUseCase.OutboxUseCase, error) {
	return resolve(c, &c.outboxUseCaseInit, "outboxUseCase", &c.outboxUseCase, c.initOutboxUseCase)
}

// SenderRegistry returns the sender registry with every configured channel and route.
func (c *Container) SenderRegistry() (*sender.Registry, error) {
	return resolve(c, &c.senderRegistryInit, "senderRegistry", &c.senderRegistry, c.initSenderRegistry)
}

// Dispatcher returns the outbox dispatcher.
func (c *Container) Dispatcher() (*outboxUseCase.Dispatcher, error) {
	return resolve(c, &c.dispatcherInit, "dispatcher", &c.dispatcher, c.initDispatcher)
}

// OutboxHandler returns the HTTP handler for outbox operator requests.
func (c *Container) OutboxHandler() (*outboxHTTP.OutboxHandler, error) {
	return resolve(c, &c.outboxHandlerInit, "outboxHandler", &c.outboxHandler, func() (*outboxHTTP.OutboxHandler, error) {
		useCase, err := c.OutboxUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get outbox use case for outbox handler: %w", err)
		}
		return outboxHTTP.NewOutboxHandler(useCase, c.Logger()), nil
	})
}

func (c *Container) initOutboxRepository() (outboxUseCase.OutboxEventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return outboxRepository.NewPostgreSQLOutboxEventRepository(db), nil
	case "mysql":
		return outboxRepository.NewMySQLOutboxEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initOutboxUseCase() (outboxUseCase.OutboxUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox use case: %w", err)
	}
	repo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox use case: %w", err)
	}

	baseUseCase := outboxUseCase.NewOutboxUseCase(txManager, repo, c.Logger())

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for outbox use case: %w", err)
	}
	return outboxUseCase.NewOutboxUseCaseWithMetrics(baseUseCase, businessMetrics), nil
}

// initSenderRegistry registers the log sender plus every channel whose settings
// are present, then applies the routes.
func (c *Container) initSenderRegistry() (*sender.Registry, error) {
	registry := sender.NewRegistry()
	registry.Register(SenderLog, sender.NewLogSender(c.Logger()))

	if brokers := splitList(c.config.KafkaBrokers); len(brokers) > 0 {
		producer, err := sender.NewKafkaProducer(brokers)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka producer: %w", err)
		}
		kafkaSender := sender.NewKafkaSender(producer, c.config.KafkaTopicPrefix)
		c.onShutdown(func(context.Context) error { return kafkaSender.Close() })
		registry.Register(SenderKafka, kafkaSender)
	}

	if c.config.RedisAddr != "" {
		client, err := c.RedisClient()
		if err != nil {
			return nil, err
		}
		registry.Register(SenderRedis, sender.NewRedisStreamSender(client, c.config.RedisStream, 0))
	}

	if c.config.PubSubTopicURL != "" {
		pubsubSender, err := sender.OpenPubSubSender(context.Background(), c.config.PubSubTopicURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open pubsub topic: %w", err)
		}
		c.onShutdown(pubsubSender.Close)
		registry.Register(SenderPubSub, pubsubSender)
	}

	routes, err := sender.ParseRoutes(c.config.OutboxRoutes)
	if err != nil {
		return nil, err
	}
	for eventType, name := range routes {
		registry.Route(eventType, name)
	}
	registry.SetDefault(c.config.OutboxDefaultSender)

	if err := registry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox sender configuration: %w", err)
	}
	return registry, nil
}

func (c *Container) initDispatcher() (*outboxUseCase.Dispatcher, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for dispatcher: %w", err)
	}
	repo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for dispatcher: %w", err)
	}
	registry, err := c.SenderRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get sender registry for dispatcher: %w", err)
	}
	dispatchMetrics, err := c.DispatchMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatch metrics for dispatcher: %w", err)
	}

	dispatcherConfig := outboxUseCase.DispatcherConfig{
		Interval:      c.config.OutboxInterval,
		BatchSize:     c.config.OutboxBatchSize,
		Workers:       c.config.OutboxWorkers,
		LeaseDuration: c.config.OutboxLeaseDuration,
		SendTimeout:   c.config.OutboxSendTimeout,
		Backoff: outboxDomain.Backoff{
			Base: c.config.OutboxBackoffBase,
			Max:  c.config.OutboxBackoffMax,
		},
		WorkerID: workerID(),
	}

	dispatcher, err := outboxUseCase.NewDispatcher(dispatcherConfig, txManager, repo, registry, dispatchMetrics, c.Logger())
	if err != nil {
		return nil, fmt.Errorf("invalid dispatcher configuration: %w", err)
	}
	return dispatcher, nil
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "dispatcher"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
