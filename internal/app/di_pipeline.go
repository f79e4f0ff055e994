package app

import (
	"fmt"
	"sync"

	pipelineHTTP "github.com/roofline/crmcore/internal/pipeline/http"
	pipelineRepository "github.com/roofline/crmcore/internal/pipeline/repository"
	pipelineUseCase "github.com/roofline/crmcore/internal/pipeline/usecase"
	"github.com/roofline/crmcore/internal/tenant"
)

type pipelineComponents struct {
	entryRepository    pipelineUseCase.EntryRepository
	ruleRepository     pipelineUseCase.RuleRepository
	historyRepository  pipelineUseCase.HistoryRepository
	approvalRepository pipelineUseCase.ApprovalRepository
	pipelineUseCase    pipelineUseCase.PipelineUseCase
	ruleUseCase        pipelineUseCase.RuleUseCase
	entryHandler       *pipelineHTTP.EntryHandler
	transitionHandler  *pipelineHTTP.TransitionHandler
	approvalHandler    *pipelineHTTP.ApprovalHandler
	ruleHandler        *pipelineHTTP.RuleHandler

	entryRepositoryInit    sync.Once
	ruleRepositoryInit     sync.Once
	historyRepositoryInit  sync.Once
	approvalRepositoryInit sync.Once
	pipelineUseCaseInit    sync.Once
	ruleUseCaseInit        sync.Once
	entryHandlerInit       sync.Once
	transitionHandlerInit  sync.Once
	approvalHandlerInit    sync.Once
	ruleHandlerInit        sync.Once
}

// TenantResolver returns the resolver that reads the tenant scope from gateway headers.
func (c *Container) TenantResolver() tenant.Resolver {
	return tenant.NewHeaderResolver()
}

// EntryRepository returns the pipeline entry repository based on database driver.
func (c *Container) EntryRepository() (pipelineUseCase.EntryRepository, error) {
	return resolve(c, &c.entryRepositoryInit, "entryRepository", &c.entryRepository, c.initEntryRepository)
}

// RuleRepository returns the transition rule repository based on database driver.
func (c *Container) RuleRepository() (pipelineUseCase.RuleRepository, error) {
	return resolve(c, &c.ruleRepositoryInit, "ruleRepository", &c.ruleRepository, c.initRuleRepository)
}

// HistoryRepository returns the transition history repository based on database driver.
func (c *Container) HistoryRepository() (pipelineUseCase.HistoryRepository, error) {
	return resolve(c, &c.historyRepositoryInit, "historyRepository", &c.historyRepository, c.initHistoryRepository)
}

// ApprovalRepository returns the approval queue repository based on database driver.
func (c *Container) ApprovalRepository() (pipelineUseCase.ApprovalRepository, error) {
	return resolve(
		c, &c.approvalRepositoryInit, "approvalRepository", &c.approvalRepository, c.initApprovalRepository,
	)
}

// PipelineUseCase returns the pipeline state machine.
func (c *Container) PipelineUseCase() (pipelineUseCase.PipelineUseCase, error) {
	return resolve(c, &c.pipelineUseCaseInit, "pipelineUseCase", &c.pipelineUseCase, c.initPipelineUseCase)
}

// RuleUseCase returns the rule administration use case.
func (c *Container) RuleUseCase() (pipelineUseCase.RuleUseCase, error) {
	return resolve(c, &c.ruleUseCaseInit, "ruleUseCase", &c.ruleUseCase, c.initRuleUseCase)
}

// EntryHandler returns the HTTP handler for pipeline entries.
func (c *Container) EntryHandler() (*pipelineHTTP.EntryHandler, error) {
	return resolve(c, &c.entryHandlerInit, "entryHandler", &c.entryHandler, func() (*pipelineHTTP.EntryHandler, error) {
		useCase, err := c.PipelineUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get pipeline use case for entry handler: %w", err)
		}
		return pipelineHTTP.NewEntryHandler(useCase, c.Logger()), nil
	})
}

// TransitionHandler returns the HTTP handler for status transitions.
func (c *Container) TransitionHandler() (*pipelineHTTP.TransitionHandler, error) {
	return resolve(
		c, &c.transitionHandlerInit, "transitionHandler", &c.transitionHandler,
		func() (*pipelineHTTP.TransitionHandler, error) {
			useCase, err := c.PipelineUseCase()
			if err != nil {
				return nil, fmt.Errorf("failed to get pipeline use case for transition handler: %w", err)
			}
			return pipelineHTTP.NewTransitionHandler(useCase, c.Logger()), nil
		},
	)
}

// ApprovalHandler returns the HTTP handler for the approval queue.
func (c *Container) ApprovalHandler() (*pipelineHTTP.ApprovalHandler, error) {
	return resolve(
		c, &c.approvalHandlerInit, "approvalHandler", &c.approvalHandler,
		func() (*pipelineHTTP.ApprovalHandler, error) {
			useCase, err := c.PipelineUseCase()
			if err != nil {
				return nil, fmt.Errorf("failed to get pipeline use case for approval handler: %w", err)
			}
			return pipelineHTTP.NewApprovalHandler(useCase, c.Logger()), nil
		},
	)
}

// RuleHandler returns the HTTP handler for rule administration.
func (c *Container) RuleHandler() (*pipelineHTTP.RuleHandler, error) {
	return resolve(c, &c.ruleHandlerInit, "ruleHandler", &c.ruleHandler, func() (*pipelineHTTP.RuleHandler, error) {
		useCase, err := c.RuleUseCase()
		if err != nil {
			return nil, fmt.Errorf("failed to get rule use case for rule handler: %w", err)
		}
		return pipelineHTTP.NewRuleHandler(useCase, c.Logger()), nil
	})
}

func (c *Container) initEntryRepository() (pipelineUseCase.EntryRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for entry repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return pipelineRepository.NewPostgreSQLEntryRepository(db), nil
	case "mysql":
		return pipelineRepository.NewMySQLEntryRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initRuleRepository() (pipelineUseCase.RuleRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for rule repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return pipelineRepository.NewPostgreSQLRuleRepository(db), nil
	case "mysql":
		return pipelineRepository.NewMySQLRuleRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initHistoryRepository() (pipelineUseCase.HistoryRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for history repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return pipelineRepository.NewPostgreSQLHistoryRepository(db), nil
	case "mysql":
		return pipelineRepository.NewMySQLHistoryRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initApprovalRepository() (pipelineUseCase.ApprovalRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for approval repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return pipelineRepository.NewPostgreSQLApprovalRepository(db), nil
	case "mysql":
		return pipelineRepository.NewMySQLApprovalRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initPipelineUseCase() (pipelineUseCase.PipelineUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for pipeline use case: %w", err)
	}
	entryRepo, err := c.EntryRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get entry repository for pipeline use case: %w", err)
	}
	ruleRepo, err := c.RuleRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get rule repository for pipeline use case: %w", err)
	}
	historyRepo, err := c.HistoryRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get history repository for pipeline use case: %w", err)
	}
	approvalRepo, err := c.ApprovalRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get approval repository for pipeline use case: %w", err)
	}
	ledger, err := c.Ledger()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox ledger for pipeline use case: %w", err)
	}

	baseUseCase := pipelineUseCase.NewPipelineUseCase(
		txManager, entryRepo, ruleRepo, historyRepo, approvalRepo, ledger, c.Logger(),
	)

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for pipeline use case: %w", err)
	}
	return pipelineUseCase.NewPipelineUseCaseWithMetrics(baseUseCase, businessMetrics), nil
}

func (c *Container) initRuleUseCase() (pipelineUseCase.RuleUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for rule use case: %w", err)
	}
	ruleRepo, err := c.RuleRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get rule repository for rule use case: %w", err)
	}

	baseUseCase := pipelineUseCase.NewRuleUseCase(txManager, ruleRepo, c.Logger())

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for rule use case: %w", err)
	}
	return pipelineUseCase.NewRuleUseCaseWithMetrics(baseUseCase, businessMetrics), nil
}
