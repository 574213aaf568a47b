package authflow

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Workflow.MaxRetries != 3 {
		t.Fatalf("expected default retry budget 3, got %d", cfg.Workflow.MaxRetries)
	}
	if !cfg.Workflow.AllowSkip {
		t.Fatal("skipping must default to enabled")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "negative retries",
			mutate: func(c *Config) { c.Workflow.MaxRetries = -1 },
			want:   "MaxRetries",
		},
		{
			name:   "excessive retries",
			mutate: func(c *Config) { c.Workflow.MaxRetries = 11 },
			want:   "MaxRetries",
		},
		{
			name:   "zero timeout",
			mutate: func(c *Config) { c.Executor.MFATimeout = 0 },
			want:   "timeouts",
		},
		{
			name: "analytics without log bound",
			mutate: func(c *Config) {
				c.Analytics.Enabled = true
				c.Analytics.MaxLogEntries = 0
			},
			want: "MaxLogEntries",
		},
		{
			name: "history without retention",
			mutate: func(c *Config) {
				c.History.Enabled = true
				c.History.Retention = 0
			},
			want: "Retention",
		},
		{
			name: "unknown workflow override",
			mutate: func(c *Config) {
				c.Workflow.Steps = map[WorkflowType][]StepDefinition{
					workflowTypeCount: {{ID: "x"}},
				}
			},
			want: "unknown workflow",
		},
		{
			name: "empty override",
			mutate: func(c *Config) {
				c.Workflow.Steps = map[WorkflowType][]StepDefinition{
					WorkflowLogin: {},
				}
			},
			want: "must not be empty",
		},
		{
			name: "duplicate step IDs",
			mutate: func(c *Config) {
				c.Workflow.Steps = map[WorkflowType][]StepDefinition{
					WorkflowLogin: {{ID: "a"}, {ID: "a"}},
				}
			},
			want: "duplicate",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %q", tc.want, err)
			}
		})
	}
}

func TestWithConfigFillsZeroValues(t *testing.T) {
	b := New().WithConfig(Config{
		Workflow:  WorkflowConfig{AllowSkip: true, MaxRetries: 2},
		Analytics: AnalyticsConfig{Enabled: true},
	})

	if b.cfg.Executor.CredentialTimeout != 30*time.Second {
		t.Fatalf("expected default credential timeout, got %s", b.cfg.Executor.CredentialTimeout)
	}
	if b.cfg.Analytics.BufferSize != 256 || b.cfg.Analytics.MaxLogEntries != 256 {
		t.Fatalf("expected analytics defaults, got %+v", b.cfg.Analytics)
	}
	if b.cfg.History.RedisPrefix != "awf" {
		t.Fatalf("expected default history prefix, got %q", b.cfg.History.RedisPrefix)
	}
	if b.cfg.Workflow.MaxRetries != 2 {
		t.Fatalf("explicit values must survive, got %d", b.cfg.Workflow.MaxRetries)
	}
}

func TestCloneConfigDeepCopiesSteps(t *testing.T) {
	cfg := defaultConfig()
	cfg.Workflow.Steps = map[WorkflowType][]StepDefinition{
		WorkflowLogin: {{ID: "pin", Required: true}},
	}

	clone := cloneConfig(cfg)
	clone.Workflow.Steps[WorkflowLogin][0].ID = "mutated"

	if cfg.Workflow.Steps[WorkflowLogin][0].ID != "pin" {
		t.Fatal("cloneConfig must deep-copy step overrides")
	}
}

func TestBuildRequiresRedisForHistory(t *testing.T) {
	cfg := defaultConfig()
	cfg.History.Enabled = true

	_, err := New().WithConfig(cfg).WithAuthOperations(&stubOps{}).Build()
	if err == nil {
		t.Fatal("expected error when history is enabled without a redis client")
	}
}
