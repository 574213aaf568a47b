package authflow

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCompletedWorkflowPersistedToHistory(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := defaultConfig()
	cfg.Executor = testExecutorConfig()
	cfg.History.Enabled = true
	cfg.History.Retention = 5

	c, err := New().
		WithConfig(cfg).
		WithAuthOperations(&stubOps{}).
		WithRedis(rdb).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	started, err := c.StartWorkflow(ctx, WorkflowLogin, WorkflowConfig{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := c.Dispatch(ctx, EventSubmitData, Payload{"email": "a@example.com"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForStep(t, c, "mfa")
	if _, err := c.SkipStep(ctx); err != nil {
		t.Fatalf("skip mfa: %v", err)
	}
	if _, err := c.SkipStep(ctx); err != nil {
		t.Fatalf("skip biometric: %v", err)
	}
	if _, err := c.NextStep(ctx); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Persistence is asynchronous; poll the store.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		records, err := c.History(ctx, WorkflowLogin, 10)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(records) == 1 {
			rec := records[0]
			if rec.InstanceID != started.InstanceID {
				t.Fatalf("expected instance %s, got %s", started.InstanceID, rec.InstanceID)
			}
			if rec.FinalState != StepCompleted {
				t.Fatalf("expected completed, got %s", rec.FinalState)
			}
			if rec.CompletionRatio != 1 {
				t.Fatalf("expected completion ratio 1, got %f", rec.CompletionRatio)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no history record persisted")
}

func TestCancelledWorkflowPersistedWithPartialCompletion(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := defaultConfig()
	cfg.Executor = testExecutorConfig()
	cfg.History.Enabled = true

	c, err := New().
		WithConfig(cfg).
		WithAuthOperations(&stubOps{}).
		WithRedis(rdb).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if _, err := c.StartWorkflow(ctx, WorkflowLogin, WorkflowConfig{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := c.Cancel(ctx); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		records, err := c.History(ctx, WorkflowLogin, 10)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(records) == 1 {
			if records[0].FinalState != StepCancelled {
				t.Fatalf("expected cancelled, got %s", records[0].FinalState)
			}
			if records[0].CompletionRatio >= 1 {
				t.Fatalf("expected partial completion, got %f", records[0].CompletionRatio)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no history record persisted")
}
