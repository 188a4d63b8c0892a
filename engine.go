package webhookengine

import "github.com/goliatone/go-webhook-engine/core"

type Config = core.Config

type RetryConfig = core.RetryConfig

type VerificationConfig = core.VerificationConfig

type CacheConfig = core.CacheConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Event = core.Event
type ProcessedEvent = core.ProcessedEvent
type RetryRecord = core.RetryRecord
type RetryStatus = core.RetryStatus
type SweepStats = core.SweepStats

type Ledger = core.Ledger
type RetryStore = core.RetryStore
type Verifier = core.Verifier
type Processor = core.Processor
type ProcessorFunc = core.ProcessorFunc
type RetryClassifier = core.RetryClassifier
type RetryClassifierFunc = core.RetryClassifierFunc
type BackoffPolicy = core.BackoffPolicy
type MetricsRecorder = core.MetricsRecorder

type Logger = core.Logger

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithVerifier          = core.WithVerifier
	WithProcessor         = core.WithProcessor
	WithRetryClassifier   = core.WithRetryClassifier
	WithBackoffPolicy     = core.WithBackoffPolicy
	WithRandSource        = core.WithRandSource
	WithLedger            = core.WithLedger
	WithRetryStore        = core.WithRetryStore
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
