package authflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authflow/internal/history"
)

// Controller is the single entry point for driving authentication workflows.
// It owns at most one workflow instance at a time, serializes every state
// mutation behind its mutex, and hands step executions to the executor
// asynchronously so the caller never blocks on a backend call.
//
// All exported methods are safe for concurrent use.
type Controller struct {
	cfg      Config
	executor *stepExecutor
	recorder *Recorder
	history  *history.Store

	mu     sync.Mutex
	wc     *workflowContext
	closed bool

	clock func() time.Time
}

// WorkflowRecord is one persisted summary of a finished workflow instance.
type WorkflowRecord struct {
	InstanceID      string
	Workflow        string
	FinalState      StepID
	StartedAt       time.Time
	FinishedAt      time.Time
	ErrorCount      int
	RetryCount      int
	CompletionRatio float64
}

// StartWorkflow creates a new workflow instance of the given type and moves it
// onto its first step. The config overrides the build-time workflow options
// for this one instance: a zero config keeps the controller defaults, a
// non-zero config is used as given with a zero MaxRetries filled from the
// default. At most one instance may be active per controller; a second call
// while the current instance is non-terminal returns ErrWorkflowAlreadyActive.
func (c *Controller) StartWorkflow(ctx context.Context, t WorkflowType, cfg WorkflowConfig) (ContextSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ContextSnapshot{}, ErrControllerClosed
	}
	if c.wc != nil && !terminalState(c.wc.current) {
		return c.wc.snapshot(), ErrWorkflowAlreadyActive
	}
	if t >= workflowTypeCount {
		return ContextSnapshot{}, errors.New("unknown workflow type")
	}
	cfg = c.resolveWorkflowConfig(cfg)
	if err := cfg.validate(); err != nil {
		return ContextSnapshot{}, err
	}

	now := c.clock()
	c.wc = newWorkflowContext(uuid.NewString(), t, cfg, now)

	c.recorder.inc(MetricWorkflowStarted)
	c.recorder.record(ctx, AnalyticsEvent{
		Timestamp:  now,
		InstanceID: c.wc.instanceID,
		Workflow:   t.String(),
		EventType:  "workflow_started",
		Step:       string(c.wc.current),
		DeviceID:   deviceIDFrom(ctx),
		IP:         clientIPFrom(ctx),
		Success:    true,
	})

	c.applyLocked(ctx, EventInitialize, nil)
	return c.wc.snapshot(), nil
}

// resolveWorkflowConfig merges a per-instance override into the build-time
// workflow options.
func (c *Controller) resolveWorkflowConfig(override WorkflowConfig) WorkflowConfig {
	if override.isZero() {
		return c.cfg.Workflow
	}
	if override.MaxRetries == 0 {
		override.MaxRetries = c.cfg.Workflow.MaxRetries
	}
	return override
}

// Dispatch runs one transition event through the active workflow. Illegal
// events for the current step are absorbed as rejected transitions and
// returned without error; Dispatch errors only for structural misuse
// (no workflow, terminal workflow, concurrent execution, closed controller).
//
// SubmitData and Retry on a step with a bound backend operation start an
// asynchronous execution; its StepSucceeded or StepFailed outcome is
// dispatched internally when the operation resolves.
func (c *Controller) Dispatch(ctx context.Context, event TransitionEvent, payload Payload) (ContextSnapshot, error) {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ContextSnapshot{}, ErrControllerClosed
	}
	if c.wc == nil {
		c.mu.Unlock()
		return ContextSnapshot{}, ErrNoActiveWorkflow
	}
	if event == EventReset {
		snap := c.resetLocked(ctx)
		c.mu.Unlock()
		return snap, nil
	}
	if terminalState(c.wc.current) {
		snap := c.wc.snapshot()
		c.mu.Unlock()
		return snap, ErrWorkflowTerminal
	}

	if event == EventCancel {
		c.executor.abort()
		c.applyLocked(ctx, EventCancel, payload)
		snap := c.wc.snapshot()
		c.mu.Unlock()
		return snap, nil
	}

	op := stepOperation(c.wc.workflowType, c.wc.current)
	executable := op != opNone && (event == EventSubmitData || event == EventRetry)

	if executable {
		if _, legal := c.wc.table.nextStep(c.wc.current, event); !legal {
			c.applyLocked(ctx, event, payload)
			snap := c.wc.snapshot()
			c.mu.Unlock()
			return snap, nil
		}
		if !c.executor.tryAcquire() {
			c.recorder.inc(MetricConcurrentRejected)
			c.recorder.record(ctx, AnalyticsEvent{
				InstanceID: c.wc.instanceID,
				Workflow:   c.wc.workflowType.String(),
				EventType:  "concurrent_rejected",
				Step:       string(c.wc.current),
				DeviceID:   deviceIDFrom(ctx),
				IP:         clientIPFrom(ctx),
				Error:      ErrConcurrentExecution.Error(),
			})
			snap := c.wc.snapshot()
			c.mu.Unlock()
			return snap, ErrConcurrentExecution
		}
	}

	c.applyLocked(ctx, event, payload)
	snap := c.wc.snapshot()

	if executable {
		instanceID := c.wc.instanceID
		step := c.wc.current
		attempt := c.wc.retries + 1
		execPayload := c.executionPayloadLocked(payload)
		c.recorder.inc(MetricStepAttempted)
		c.mu.Unlock()

		go c.runStep(ctx, instanceID, op, step, attempt, execPayload)
		return snap, nil
	}

	c.mu.Unlock()
	return snap, nil
}

// executionPayloadLocked merges the data collected on every step so far with
// the just-dispatched payload. Operations that confirm earlier input, like the
// password change at the end of its workflow, read fields collected on
// previous steps.
func (c *Controller) executionPayloadLocked(payload Payload) Payload {
	merged := make(Payload)
	for _, def := range c.wc.steps {
		for k, v := range c.wc.data[def.ID] {
			merged[k] = v
		}
	}
	for k, v := range payload {
		merged[k] = v
	}
	return merged
}

// runStep executes the backend operation off the controller mutex and feeds
// the outcome back through the internal dispatch path. Outcomes for instances
// that were cancelled or reset in the meantime are dropped.
func (c *Controller) runStep(ctx context.Context, instanceID string, op operationKind, step StepID, attempt int, payload Payload) {
	started := c.clock()
	result, stepErr := c.executor.execute(ctx, op, step, attempt, payload)
	elapsed := c.clock().Sub(started)
	c.executor.release()

	if stepErr != nil {
		// An execution aborted through Cancel, Reset, or the caller's own
		// context is not a step failure; keep it out of the aggregates.
		if !errors.Is(stepErr, context.Canceled) {
			c.recorder.observe(MetricStepLatency, elapsed)
			c.recorder.inc(MetricStepFailed)
			if errors.Is(stepErr, ErrStepTimeout) {
				c.recorder.inc(MetricStepTimeout)
			}
			c.recorder.record(ctx, AnalyticsEvent{
				InstanceID: instanceID,
				EventType:  "step_executed",
				Step:       string(step),
				DeviceID:   deviceIDFrom(ctx),
				IP:         clientIPFrom(ctx),
				Error:      stepErr.Error(),
				DurationMS: elapsed.Milliseconds(),
			})
		}
		c.dispatchInternal(ctx, instanceID, EventStepFailed, Payload{"error": error(stepErr)})
		return
	}

	c.recorder.observe(MetricStepLatency, elapsed)
	c.recorder.inc(MetricStepSucceeded)
	c.recorder.record(ctx, AnalyticsEvent{
		InstanceID: instanceID,
		EventType:  "step_executed",
		Step:       string(step),
		DeviceID:   deviceIDFrom(ctx),
		IP:         clientIPFrom(ctx),
		Success:    true,
		DurationMS: elapsed.Milliseconds(),
	})
	c.dispatchInternal(ctx, instanceID, EventStepSucceeded, result)
}

// dispatchInternal applies an executor outcome, guarded by instance identity.
// A stale outcome, arriving after Cancel or Reset replaced or terminated the
// instance, is dropped silently.
func (c *Controller) dispatchInternal(ctx context.Context, instanceID string, event TransitionEvent, payload Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.wc == nil || c.wc.instanceID != instanceID || terminalState(c.wc.current) {
		return
	}

	c.applyLocked(ctx, event, payload)

	if event == EventStepSucceeded && c.wc.config.AutoProgress {
		c.autoProgressLocked(ctx)
	}
}

// autoProgressLocked advances through consecutive steps with no bound backend
// operation, stopping at the next executable step, the final step of the
// sequence, or a terminal state. Crossing the final step into Completed is
// always an explicit caller event.
func (c *Controller) autoProgressLocked(ctx context.Context) {
	last := c.wc.steps[len(c.wc.steps)-1].ID
	for !terminalState(c.wc.current) && c.wc.current != last {
		if stepOperation(c.wc.workflowType, c.wc.current) != opNone {
			return
		}
		if _, legal := c.wc.table.nextStep(c.wc.current, EventNext); !legal {
			return
		}
		c.applyLocked(ctx, EventNext, nil)
	}
}

// applyLocked runs one event through the engine and performs all transition
// bookkeeping: metrics, the analytics event, and terminal-state persistence.
func (c *Controller) applyLocked(ctx context.Context, event TransitionEvent, payload Payload) transitionResult {
	now := c.clock()
	res := c.wc.apply(event, payload, now)

	if !res.Applied {
		c.recorder.inc(MetricTransitionRejected)
	} else {
		c.recorder.inc(MetricTransitionApplied)
		switch event {
		case EventSkip:
			c.recorder.inc(MetricStepSkipped)
		case EventRetry:
			c.recorder.inc(MetricStepRetried)
		}
		if res.BudgetExhausted {
			c.recorder.inc(MetricRetryBudgetExceeded)
		}
		switch res.To {
		case StepCompleted:
			c.recorder.inc(MetricWorkflowCompleted)
		case StepCancelled:
			c.recorder.inc(MetricWorkflowCancelled)
		case StepError:
			c.recorder.inc(MetricWorkflowErrored)
		}
	}

	ev := AnalyticsEvent{
		Timestamp:  now,
		InstanceID: c.wc.instanceID,
		Workflow:   c.wc.workflowType.String(),
		EventType:  event.String(),
		Step:       string(res.From),
		DeviceID:   deviceIDFrom(ctx),
		IP:         clientIPFrom(ctx),
		Success:    res.Applied,
	}
	if tag := sessionTagFrom(ctx); tag != "" {
		ev.Metadata = map[string]string{"session_tag": tag}
	}
	if !res.Applied {
		ev.Error = "transition rejected"
	}
	if res.StepDuration > 0 {
		ev.DurationMS = res.StepDuration.Milliseconds()
	}
	c.recorder.record(ctx, ev)

	if res.Applied && terminalState(res.To) {
		c.persistLocked(now)
	}

	return res
}

// persistLocked writes the finished instance summary to the history store.
// Best effort: persistence failures never affect the workflow outcome.
func (c *Controller) persistLocked(now time.Time) {
	if c.history == nil {
		return
	}
	a := c.wc.analytics(now)
	rec := history.Record{
		InstanceID:      c.wc.instanceID,
		Workflow:        a.Workflow,
		FinalState:      string(c.wc.current),
		StartedAt:       c.wc.startedAt,
		FinishedAt:      now,
		ErrorCount:      a.ErrorCount,
		RetryCount:      a.RetryCount,
		CompletionRatio: a.CompletionRatio,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.history.Save(ctx, rec)
	}()
}

// resetLocked destroys the active instance and returns the idle snapshot.
func (c *Controller) resetLocked(ctx context.Context) ContextSnapshot {
	c.executor.abort()

	c.recorder.inc(MetricWorkflowReset)
	c.recorder.record(ctx, AnalyticsEvent{
		InstanceID: c.wc.instanceID,
		Workflow:   c.wc.workflowType.String(),
		EventType:  EventReset.String(),
		Step:       string(c.wc.current),
		DeviceID:   deviceIDFrom(ctx),
		IP:         clientIPFrom(ctx),
		Success:    true,
	})
	c.recorder.Forget(c.wc.instanceID)
	c.wc = nil

	return idleSnapshot()
}

func idleSnapshot() ContextSnapshot {
	return ContextSnapshot{
		CurrentStep: StepIdle,
		Flags:       NavigationFlags{},
	}
}

// NextStep advances past the current data-collection step. A no-op returning
// the unchanged snapshot when navigation forward is not currently allowed.
func (c *Controller) NextStep(ctx context.Context) (ContextSnapshot, error) {
	return c.navigate(ctx, EventNext, func(f NavigationFlags) bool { return f.CanGoNext })
}

// PreviousStep returns to the previously visited step. A no-op when backward
// navigation is not currently allowed.
func (c *Controller) PreviousStep(ctx context.Context) (ContextSnapshot, error) {
	return c.navigate(ctx, EventPrevious, func(f NavigationFlags) bool { return f.CanGoPrevious })
}

// SkipStep bypasses the current step. A no-op when the step is not skippable
// or skipping is disabled in configuration.
func (c *Controller) SkipStep(ctx context.Context) (ContextSnapshot, error) {
	return c.navigate(ctx, EventSkip, func(f NavigationFlags) bool { return f.CanSkip })
}

func (c *Controller) navigate(ctx context.Context, event TransitionEvent, allowed func(NavigationFlags) bool) (ContextSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ContextSnapshot{}, ErrControllerClosed
	}
	if c.wc == nil {
		return ContextSnapshot{}, ErrNoActiveWorkflow
	}
	if !allowed(c.wc.flags) {
		return c.wc.snapshot(), nil
	}

	c.applyLocked(ctx, event, nil)
	return c.wc.snapshot(), nil
}

// Cancel aborts the active workflow, cancelling any in-flight step execution.
// Idempotent: cancelling an already terminal workflow returns its snapshot
// unchanged.
func (c *Controller) Cancel(ctx context.Context) (ContextSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ContextSnapshot{}, ErrControllerClosed
	}
	if c.wc == nil {
		return ContextSnapshot{}, ErrNoActiveWorkflow
	}
	if terminalState(c.wc.current) {
		return c.wc.snapshot(), nil
	}

	c.executor.abort()
	c.applyLocked(ctx, EventCancel, nil)
	return c.wc.snapshot(), nil
}

// Reset destroys the workflow instance, from any state, and returns to Idle.
// Resetting with no active instance is a no-op.
func (c *Controller) Reset(ctx context.Context) (ContextSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ContextSnapshot{}, ErrControllerClosed
	}
	if c.wc == nil {
		return idleSnapshot(), nil
	}
	return c.resetLocked(ctx), nil
}

// Snapshot returns the read-only view of the active workflow, or the idle
// snapshot when none is active.
func (c *Controller) Snapshot() ContextSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.wc == nil {
		return idleSnapshot()
	}
	return c.wc.snapshot()
}

// Analytics computes the on-demand analytics view of the active workflow.
func (c *Controller) Analytics() (AnalyticsSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.wc == nil {
		return AnalyticsSnapshot{}, ErrNoActiveWorkflow
	}
	return c.wc.analytics(c.clock()), nil
}

// ExportReport renders the active workflow's analytics, the aggregate
// counters, and the retained event log in the given format. Only "json" is
// supported.
func (c *Controller) ExportReport(format string) ([]byte, error) {
	analytics, err := c.Analytics()
	if err != nil {
		return nil, err
	}
	return c.recorder.exportReport(format, analytics)
}

// Events returns the recorder's retained event log for the active instance.
func (c *Controller) Events() []AnalyticsEvent {
	c.mu.Lock()
	instanceID := ""
	if c.wc != nil {
		instanceID = c.wc.instanceID
	}
	c.mu.Unlock()

	if instanceID == "" {
		return nil
	}
	return c.recorder.Events(instanceID)
}

// MetricsSnapshot returns a point-in-time copy of the aggregate counters.
// Together with AnalyticsDropped it satisfies the exporter source interface
// under metrics/export/.
func (c *Controller) MetricsSnapshot() MetricsSnapshot {
	return c.recorder.MetricsSnapshot()
}

// AnalyticsDropped reports events shed by the analytics dispatcher.
func (c *Controller) AnalyticsDropped() uint64 {
	return c.recorder.AnalyticsDropped()
}

// History lists persisted workflow summaries for one workflow type, newest
// first. Fails with ErrHistoryDisabled when no history store is configured.
func (c *Controller) History(ctx context.Context, t WorkflowType, limit int) ([]WorkflowRecord, error) {
	if c.history == nil {
		return nil, ErrHistoryDisabled
	}
	records, err := c.history.List(ctx, t.String(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]WorkflowRecord, len(records))
	for i, r := range records {
		out[i] = WorkflowRecord{
			InstanceID:      r.InstanceID,
			Workflow:        r.Workflow,
			FinalState:      StepID(r.FinalState),
			StartedAt:       r.StartedAt,
			FinishedAt:      r.FinishedAt,
			ErrorCount:      r.ErrorCount,
			RetryCount:      r.RetryCount,
			CompletionRatio: r.CompletionRatio,
		}
	}
	return out, nil
}

// Close aborts any in-flight execution and drains the analytics dispatcher.
// The controller is unusable afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.wc = nil
	c.mu.Unlock()

	c.executor.abort()
	c.recorder.Close()
}
