package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
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
	randSource        func() float64
	ledger            Ledger
	retryStore        RetryStore
	now               func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithVerifier(verifier Verifier) Option {
	return func(b *serviceBuilder) {
		b.verifier = verifier
	}
}

func WithProcessor(processor Processor) Option {
	return func(b *serviceBuilder) {
		b.processor = processor
	}
}

func WithRetryClassifier(classifier RetryClassifier) Option {
	return func(b *serviceBuilder) {
		b.classifier = classifier
	}
}

func WithBackoffPolicy(policy BackoffPolicy) Option {
	return func(b *serviceBuilder) {
		b.backoffPolicy = policy
	}
}

// WithRandSource overrides the jitter source used when the backoff policy is
// built from config. Values must fall in [0, 1).
func WithRandSource(source func() float64) Option {
	return func(b *serviceBuilder) {
		b.randSource = source
	}
}

func WithLedger(ledger Ledger) Option {
	return func(b *serviceBuilder) {
		b.ledger = ledger
	}
}

func WithRetryStore(store RetryStore) Option {
	return func(b *serviceBuilder) {
		b.retryStore = store
	}
}

// WithClock overrides the engine clock for scheduling and ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("webhooks", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		classifier:      RetryClassifierFunc(IsRetryable),
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return engineErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	retry := map[string]any{}
	if includeZero || cfg.Retry.BatchSize != 0 {
		retry["batch_size"] = cfg.Retry.BatchSize
	}
	if includeZero || cfg.Retry.MaxRetries != 0 {
		retry["max_retries"] = cfg.Retry.MaxRetries
	}
	if includeZero || cfg.Retry.SweepInterval != 0 {
		retry["sweep_interval"] = cfg.Retry.SweepInterval
	}
	if includeZero || cfg.Retry.BackoffBase != 0 {
		retry["backoff_base"] = cfg.Retry.BackoffBase
	}
	if includeZero || cfg.Retry.BackoffCap != 0 {
		retry["backoff_cap"] = cfg.Retry.BackoffCap
	}
	if includeZero || cfg.Retry.JitterFraction != 0 {
		retry["jitter_fraction"] = cfg.Retry.JitterFraction
	}
	if includeZero || cfg.Retry.MinDelay != 0 {
		retry["min_delay"] = cfg.Retry.MinDelay
	}
	if len(retry) > 0 {
		layer["retry"] = retry
	}

	verification := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Verification.Header) != "" {
		verification["header"] = cfg.Verification.Header
	}
	if includeZero || strings.TrimSpace(cfg.Verification.Prefix) != "" {
		verification["prefix"] = cfg.Verification.Prefix
	}
	if includeZero || strings.TrimSpace(cfg.Verification.Encoding) != "" {
		verification["encoding"] = cfg.Verification.Encoding
	}
	if includeZero || cfg.Verification.ReplayWindow != 0 {
		verification["replay_window"] = cfg.Verification.ReplayWindow
	}
	if len(verification) > 0 {
		layer["verification"] = verification
	}

	cache := map[string]any{}
	if includeZero || cfg.Cache.Enabled {
		cache["enabled"] = cfg.Cache.Enabled
	}
	if includeZero || cfg.Cache.TTL != 0 {
		cache["ttl"] = cfg.Cache.TTL
	}
	if len(cache) > 0 {
		layer["cache"] = cache
	}

	return layer
}
