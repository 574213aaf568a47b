package authflow

import (
	"errors"
	"time"
)

// Config is the full controller configuration. Zero values are filled in by
// defaults at Build; use [Builder.WithConfig] to override.
type Config struct {
	Workflow  WorkflowConfig
	Executor  ExecutorConfig
	Analytics AnalyticsConfig
	Metrics   MetricsConfig
	History   HistoryConfig
}

/*
====================================
WORKFLOW CONFIG
====================================
*/

// WorkflowConfig holds the per-instance workflow options. The value stored in
// [Config] is the default; StartWorkflow accepts an override for one instance.
type WorkflowConfig struct {
	// AllowSkip gates the Skip event globally. When false, CanSkip is false
	// even on steps whose definition is skippable.
	AllowSkip bool
	// MaxRetries bounds consecutive failures of one step. The failure after
	// the budget is exhausted forces the Error state.
	MaxRetries int
	// AutoProgress advances through steps with no bound backend operation
	// automatically after a successful execution, stopping at the next
	// executable step or at the final success step.
	AutoProgress bool
	// Steps overrides the built-in step sequence per workflow type. Step
	// sequences for non-login workflows are a registry configuration concern;
	// the built-in tables are complete but replaceable.
	Steps map[WorkflowType][]StepDefinition
}

// isZero reports whether no field was set. StartWorkflow treats a zero config
// as "use the controller default".
func (w WorkflowConfig) isZero() bool {
	return !w.AllowSkip && !w.AutoProgress && w.MaxRetries == 0 && w.Steps == nil
}

func (w WorkflowConfig) validate() error {
	if w.MaxRetries < 0 {
		return errors.New("Workflow.MaxRetries must not be negative")
	}
	if w.MaxRetries > 10 {
		return errors.New("Workflow.MaxRetries above 10 defeats the retry budget")
	}
	for wt, steps := range w.Steps {
		if wt >= workflowTypeCount {
			return errors.New("Workflow.Steps contains an unknown workflow type")
		}
		if len(steps) == 0 {
			return errors.New("Workflow.Steps override must not be empty")
		}
		seen := make(map[StepID]struct{}, len(steps))
		for _, def := range steps {
			if def.ID == "" {
				return errors.New("Workflow.Steps override contains a step without an ID")
			}
			if _, dup := seen[def.ID]; dup {
				return errors.New("Workflow.Steps override contains duplicate step IDs")
			}
			seen[def.ID] = struct{}{}
		}
	}
	return nil
}

/*
====================================
EXECUTOR CONFIG
====================================
*/

// ExecutorConfig carries the per-step-class execution deadlines.
type ExecutorConfig struct {
	CredentialTimeout     time.Duration
	MFATimeout            time.Duration
	BiometricTimeout      time.Duration
	SecurityConfigTimeout time.Duration
	SocialLoginTimeout    time.Duration
	RecoveryTimeout       time.Duration
	VerificationTimeout   time.Duration
	PasswordChangeTimeout time.Duration
}

// AnalyticsConfig controls the asynchronous analytics dispatcher and the
// bounded per-instance event log.
type AnalyticsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// MaxLogEntries bounds the recorder's per-instance event log; the oldest
	// entries are evicted first.
	MaxLogEntries int
}

// MetricsConfig controls the in-process atomic counters and the optional
// step-latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// HistoryConfig controls Redis-backed persistence of finished workflow
// summaries. Requires a Redis client on the builder when enabled.
type HistoryConfig struct {
	Enabled     bool
	RedisPrefix string
	// Retention bounds the number of retained summaries; oldest are trimmed.
	Retention int
}

func defaultConfig() Config {
	return Config{
		Workflow: WorkflowConfig{
			AllowSkip:  true,
			MaxRetries: 3,
		},
		Executor: ExecutorConfig{
			CredentialTimeout:     30 * time.Second,
			MFATimeout:            15 * time.Second,
			BiometricTimeout:      20 * time.Second,
			SecurityConfigTimeout: 30 * time.Second,
			SocialLoginTimeout:    45 * time.Second,
			RecoveryTimeout:       30 * time.Second,
			VerificationTimeout:   15 * time.Second,
			PasswordChangeTimeout: 30 * time.Second,
		},
		Analytics: AnalyticsConfig{
			Enabled:       true,
			BufferSize:    256,
			DropIfFull:    true,
			MaxLogEntries: 256,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		History: HistoryConfig{
			RedisPrefix: "awf",
			Retention:   100,
		},
	}
}

// Validate checks configuration coherence. It is called by [Builder.Build];
// callers constructing Config by hand can call it directly.
func (c *Config) Validate() error {
	if err := c.Workflow.validate(); err != nil {
		return err
	}
	for _, d := range []time.Duration{
		c.Executor.CredentialTimeout,
		c.Executor.MFATimeout,
		c.Executor.BiometricTimeout,
		c.Executor.SecurityConfigTimeout,
		c.Executor.SocialLoginTimeout,
		c.Executor.RecoveryTimeout,
		c.Executor.VerificationTimeout,
		c.Executor.PasswordChangeTimeout,
	} {
		if d <= 0 {
			return errors.New("Executor timeouts must be positive")
		}
	}
	if c.Analytics.Enabled && c.Analytics.MaxLogEntries <= 0 {
		return errors.New("Analytics.MaxLogEntries must be positive when analytics is enabled")
	}
	if c.History.Enabled && c.History.Retention <= 0 {
		return errors.New("History.Retention must be positive when history is enabled")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Workflow.Steps != nil {
		out.Workflow.Steps = make(map[WorkflowType][]StepDefinition, len(cfg.Workflow.Steps))
		for wt, steps := range cfg.Workflow.Steps {
			next := make([]StepDefinition, len(steps))
			copy(next, steps)
			out.Workflow.Steps[wt] = next
		}
	}
	return out
}
