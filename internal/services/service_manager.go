package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/quiz-portal/internal/events"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
	"github.com/SAP-F-2025/quiz-portal/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	// AttemptGracePeriod is added to an attempt deadline before a submit is refused.
	AttemptGracePeriod time.Duration
	// HealthTimeout bounds each dependency check in Health.
	HealthTimeout time.Duration
}

func DefaultServiceManagerConfig() ServiceManagerConfig {
	return ServiceManagerConfig{
		AttemptGracePeriod: 2 * time.Minute,
		HealthTimeout:      3 * time.Second,
	}
}

type serviceManager struct {
	repo           repositories.Repository
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
	config         ServiceManagerConfig

	assessmentService AssessmentService
	questionService   QuestionService
	catalogService    CatalogService
	groupService      GroupService
	userService       UserService
	attemptService    AttemptService
	resultService     ResultService
	exportService     ExportService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator,
	eventPublisher events.EventPublisher, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		repo:           repo,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
		config:         config,
	}
}

// Initialize sets up all services and checks the repository is reachable.
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	sm.assessmentService = NewAssessmentService(sm.repo, sm.logger, sm.validator)
	sm.questionService = NewQuestionService(sm.repo, sm.logger, sm.validator)
	sm.catalogService = NewCatalogService(sm.repo, sm.logger, sm.validator)
	sm.groupService = NewGroupService(sm.repo, sm.logger, sm.validator)
	sm.userService = NewUserService(sm.repo, sm.logger)
	sm.attemptService = NewAttemptService(sm.repo, sm.logger, sm.validator, sm.eventPublisher, sm.config.AttemptGracePeriod)
	sm.resultService = NewResultService(sm.repo, sm.logger, sm.validator, sm.eventPublisher)
	sm.exportService = NewExportService(sm.repo, sm.logger)

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")
	return nil
}

// Service getters

func (sm *serviceManager) Assessment() AssessmentService {
	sm.mustBeInitialized()
	return sm.assessmentService
}

func (sm *serviceManager) Question() QuestionService {
	sm.mustBeInitialized()
	return sm.questionService
}

func (sm *serviceManager) Catalog() CatalogService {
	sm.mustBeInitialized()
	return sm.catalogService
}

func (sm *serviceManager) Group() GroupService {
	sm.mustBeInitialized()
	return sm.groupService
}

func (sm *serviceManager) User() UserService {
	sm.mustBeInitialized()
	return sm.userService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mustBeInitialized()
	return sm.attemptService
}

func (sm *serviceManager) Result() ResultService {
	sm.mustBeInitialized()
	return sm.resultService
}

func (sm *serviceManager) Export() ExportService {
	sm.mustBeInitialized()
	return sm.exportService
}

func (sm *serviceManager) mustBeInitialized() {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
}

// Health reports "ok" or an error string per dependency.
func (sm *serviceManager) Health(ctx context.Context) map[string]string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	status := map[string]string{"services": "ok"}
	if !sm.initialized {
		status["services"] = "not initialized"
	}
	if sm.shutdown {
		status["services"] = "shut down"
	}

	timeout := sm.config.HealthTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := sm.repo.Ping(pingCtx); err != nil {
		status["database"] = err.Error()
	} else {
		status["database"] = "ok"
	}
	return status
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.eventPublisher != nil {
		if err := sm.eventPublisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")
	return nil
}
