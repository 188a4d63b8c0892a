package core

import (
	"fmt"
	"strings"
	"time"
)

type RetryConfig struct {
	BatchSize      int           `koanf:"batch_size" mapstructure:"batch_size"`
	MaxRetries     int           `koanf:"max_retries" mapstructure:"max_retries"`
	SweepInterval  time.Duration `koanf:"sweep_interval" mapstructure:"sweep_interval"`
	BackoffBase    time.Duration `koanf:"backoff_base" mapstructure:"backoff_base"`
	BackoffCap     time.Duration `koanf:"backoff_cap" mapstructure:"backoff_cap"`
	JitterFraction float64       `koanf:"jitter_fraction" mapstructure:"jitter_fraction"`
	MinDelay       time.Duration `koanf:"min_delay" mapstructure:"min_delay"`
}

type VerificationConfig struct {
	Header       string        `koanf:"header" mapstructure:"header"`
	Prefix       string        `koanf:"prefix" mapstructure:"prefix"`
	Encoding     string        `koanf:"encoding" mapstructure:"encoding"`
	ReplayWindow time.Duration `koanf:"replay_window" mapstructure:"replay_window"`
}

type CacheConfig struct {
	Enabled bool          `koanf:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `koanf:"ttl" mapstructure:"ttl"`
}

type Config struct {
	ServiceName  string             `koanf:"service_name" mapstructure:"service_name"`
	Retry        RetryConfig        `koanf:"retry" mapstructure:"retry"`
	Verification VerificationConfig `koanf:"verification" mapstructure:"verification"`
	Cache        CacheConfig        `koanf:"cache" mapstructure:"cache"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "webhook-engine",
		Retry: RetryConfig{
			BatchSize:      50,
			MaxRetries:     5,
			SweepInterval:  time.Minute,
			BackoffBase:    defaultBackoffBase,
			BackoffCap:     defaultBackoffCap,
			JitterFraction: defaultJitterFraction,
			MinDelay:       defaultMinRetryDelay,
		},
		Verification: VerificationConfig{
			Header:   "X-Webhook-Signature",
			Encoding: "hex",
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Retry.BatchSize < 0 {
		return fmt.Errorf("core: retry.batch_size must not be negative")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("core: retry.max_retries must not be negative")
	}
	if c.Retry.SweepInterval < 0 {
		return fmt.Errorf("core: retry.sweep_interval must not be negative")
	}
	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction >= 1 {
		return fmt.Errorf("core: retry.jitter_fraction must be in [0, 1)")
	}
	switch strings.ToLower(strings.TrimSpace(c.Verification.Encoding)) {
	case "", "hex", "base64":
	default:
		return fmt.Errorf("core: verification.encoding must be hex or base64")
	}
	return nil
}
