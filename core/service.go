package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service is the webhook engine entry point. It owns the dedup ledger, the
// retry scheduler, and the orchestration flow between them; verification and
// downstream processing are injected collaborators.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	verifier          Verifier
	processor         Processor
	classifier        RetryClassifier
	backoffPolicy     BackoffPolicy
	ledger            Ledger
	retryStore        RetryStore
	scheduler         *RetryScheduler
	now               func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	Verifier          Verifier
	Processor         Processor
	Classifier        RetryClassifier
	BackoffPolicy     BackoffPolicy
	Ledger            Ledger
	RetryStore        RetryStore
	Scheduler         *RetryScheduler
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("webhooks", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("webhooks"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.classifier == nil {
		builder.classifier = RetryClassifierFunc(IsRetryable)
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if (builder.ledger == nil || builder.retryStore == nil) && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				if builder.ledger == nil {
					builder.ledger = storeProvider.Ledger()
				}
				if builder.retryStore == nil {
					builder.retryStore = storeProvider.RetryStore()
				}
			}
		} else if storeProvider, ok := builder.repositoryFactory.(StoreProvider); ok {
			if builder.ledger == nil {
				builder.ledger = storeProvider.Ledger()
			}
			if builder.retryStore == nil {
				builder.retryStore = storeProvider.RetryStore()
			}
		}
	}
	if builder.ledger == nil && builder.repositoryFactory != nil {
		if ledgerProvider, ok := builder.repositoryFactory.(interface{ Ledger() Ledger }); ok {
			builder.ledger = ledgerProvider.Ledger()
		}
	}
	if builder.retryStore == nil && builder.repositoryFactory != nil {
		if retryProvider, ok := builder.repositoryFactory.(interface{ RetryStore() RetryStore }); ok {
			builder.retryStore = retryProvider.RetryStore()
		}
	}
	if builder.ledger == nil {
		builder.ledger = NewMemoryLedger()
	}
	if builder.retryStore == nil {
		builder.retryStore = NewMemoryRetryStore()
	}

	policy := builder.backoffPolicy
	if policy == nil {
		policy = ExponentialBackoff{
			Base:     finalConfig.Retry.BackoffBase,
			Cap:      finalConfig.Retry.BackoffCap,
			Jitter:   finalConfig.Retry.JitterFraction,
			MinDelay: finalConfig.Retry.MinDelay,
			Rand:     builder.randSource,
		}
	}

	scheduler, err := NewRetryScheduler(builder.retryStore, policy, RetrySchedulerConfig{
		BatchSize:  finalConfig.Retry.BatchSize,
		MaxRetries: finalConfig.Retry.MaxRetries,
	})
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	scheduler.now = builder.now

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		verifier:          builder.verifier,
		processor:         builder.processor,
		classifier:        builder.classifier,
		backoffPolicy:     policy,
		ledger:            builder.ledger,
		retryStore:        builder.retryStore,
		scheduler:         scheduler,
		now:               builder.now,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		Verifier:          s.verifier,
		Processor:         s.processor,
		Classifier:        s.classifier,
		BackoffPolicy:     s.backoffPolicy,
		Ledger:            s.ledger,
		RetryStore:        s.retryStore,
		Scheduler:         s.scheduler,
	}
}

// Scheduler exposes the retry scheduler for callers that need to schedule or
// resolve retries outside the delivery flow.
func (s *Service) Scheduler() *RetryScheduler {
	if s == nil {
		return nil
	}
	return s.scheduler
}

func (s *Service) GetProcessedEvent(ctx context.Context, eventID string) (event ProcessedEvent, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"event_id": eventID}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_processed_event", err, fields)
	}()

	if s == nil || s.ledger == nil {
		err = fmt.Errorf("core: ledger is not configured")
		return ProcessedEvent{}, err
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		err = s.mapError(ErrEventIDRequired)
		return ProcessedEvent{}, err
	}
	event, err = s.ledger.Get(ctx, eventID)
	if err != nil {
		err = s.mapError(err)
		return ProcessedEvent{}, err
	}
	return event, nil
}

func (s *Service) GetRetry(ctx context.Context, eventID string) (record RetryRecord, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"event_id": eventID}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_retry", err, fields)
	}()

	if s == nil || s.scheduler == nil {
		err = fmt.Errorf("core: retry scheduler is not configured")
		return RetryRecord{}, err
	}
	record, err = s.scheduler.GetRetry(ctx, eventID)
	if err != nil {
		err = s.mapError(err)
		return RetryRecord{}, err
	}
	return record, nil
}

func (s *Service) ListPendingRetries(ctx context.Context, limit int) (records []RetryRecord, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["count"] = len(records)
		s.observeOperation(ctx, startedAt, "list_pending_retries", err, fields)
	}()

	if s == nil || s.scheduler == nil {
		err = fmt.Errorf("core: retry scheduler is not configured")
		return nil, err
	}
	records, err = s.scheduler.ListPending(ctx, limit)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	return records, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) timestamp() time.Time {
	if s != nil && s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}
