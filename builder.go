package authflow

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authflow/internal/history"
)

// Builder assembles a [Controller]. Options are chainable; Build validates the
// resulting configuration and wires the executor, recorder, and optional
// history store together.
type Builder struct {
	cfg   Config
	ops   AuthOperations
	sink  AnalyticsSink
	redis redis.UniversalClient
	clock func() time.Time
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		cfg:   defaultConfig(),
		clock: time.Now,
	}
}

// WithConfig replaces the whole configuration. Zero timeout values are filled
// back in from the defaults so a partial Config stays usable.
func (b *Builder) WithConfig(cfg Config) *Builder {
	defaults := defaultConfig()
	if cfg.Executor.CredentialTimeout == 0 {
		cfg.Executor.CredentialTimeout = defaults.Executor.CredentialTimeout
	}
	if cfg.Executor.MFATimeout == 0 {
		cfg.Executor.MFATimeout = defaults.Executor.MFATimeout
	}
	if cfg.Executor.BiometricTimeout == 0 {
		cfg.Executor.BiometricTimeout = defaults.Executor.BiometricTimeout
	}
	if cfg.Executor.SecurityConfigTimeout == 0 {
		cfg.Executor.SecurityConfigTimeout = defaults.Executor.SecurityConfigTimeout
	}
	if cfg.Executor.SocialLoginTimeout == 0 {
		cfg.Executor.SocialLoginTimeout = defaults.Executor.SocialLoginTimeout
	}
	if cfg.Executor.RecoveryTimeout == 0 {
		cfg.Executor.RecoveryTimeout = defaults.Executor.RecoveryTimeout
	}
	if cfg.Executor.VerificationTimeout == 0 {
		cfg.Executor.VerificationTimeout = defaults.Executor.VerificationTimeout
	}
	if cfg.Executor.PasswordChangeTimeout == 0 {
		cfg.Executor.PasswordChangeTimeout = defaults.Executor.PasswordChangeTimeout
	}
	if cfg.Analytics.Enabled && cfg.Analytics.BufferSize == 0 {
		cfg.Analytics.BufferSize = defaults.Analytics.BufferSize
	}
	if cfg.Analytics.Enabled && cfg.Analytics.MaxLogEntries == 0 {
		cfg.Analytics.MaxLogEntries = defaults.Analytics.MaxLogEntries
	}
	if cfg.History.RedisPrefix == "" {
		cfg.History.RedisPrefix = defaults.History.RedisPrefix
	}
	if cfg.History.Enabled && cfg.History.Retention == 0 {
		cfg.History.Retention = defaults.History.Retention
	}
	b.cfg = cloneConfig(cfg)
	return b
}

// WithAuthOperations binds the backend capability. Required.
func (b *Builder) WithAuthOperations(ops AuthOperations) *Builder {
	b.ops = ops
	return b
}

// WithAnalyticsSink sets the destination for analytics events. Defaults to a
// NoOpSink.
func (b *Builder) WithAnalyticsSink(sink AnalyticsSink) *Builder {
	b.sink = sink
	return b
}

// WithRedis provides the Redis client backing the workflow history store.
// Required when History.Enabled is set.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMetricsEnabled toggles the in-process metrics counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.cfg.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the step-latency histogram. Implies nothing
// unless metrics are enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.cfg.Metrics.EnableLatencyHistograms = enabled
	return b
}

// withClock overrides the time source. Test hook.
func (b *Builder) withClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Build validates the configuration and returns a ready Controller.
func (b *Builder) Build() (*Controller, error) {
	if b.ops == nil {
		return nil, ErrOperationsNotConfigured
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	if b.cfg.History.Enabled && b.redis == nil {
		return nil, ErrRedisClientRequired
	}

	var store *history.Store
	if b.cfg.History.Enabled {
		store = history.NewStore(b.redis, b.cfg.History.RedisPrefix, b.cfg.History.Retention)
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	return &Controller{
		cfg:      b.cfg,
		executor: newStepExecutor(b.ops, b.cfg.Executor),
		recorder: newRecorder(b.cfg.Analytics, NewMetrics(b.cfg.Metrics), b.sink),
		history:  store,
		clock:    clock,
	}, nil
}
