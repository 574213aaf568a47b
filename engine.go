package authflow

import (
	"time"
)

// workflowContext is the single mutable state of one workflow instance. The
// controller owns it exclusively; every mutation goes through apply under the
// controller mutex, so no transition ever observes a half-updated context.
type workflowContext struct {
	instanceID   string
	workflowType WorkflowType
	config       WorkflowConfig
	steps        []StepDefinition
	table        transitionTable

	current  StepID
	previous StepID
	data     map[StepID]Payload
	retries  int
	progress float64
	flags    NavigationFlags

	startedAt     time.Time
	enteredStepAt time.Time

	actions []ActionLogEntry
	errors  []ErrorLogEntry

	rejected int
}

// transitionResult describes one apply outcome for the controller and the
// analytics recorder.
type transitionResult struct {
	Applied         bool
	From            StepID
	To              StepID
	StepDuration    time.Duration
	BudgetExhausted bool
}

func newWorkflowContext(instanceID string, t WorkflowType, cfg WorkflowConfig, now time.Time) *workflowContext {
	steps := cfg.Steps[t]
	if steps == nil {
		steps = Steps(t)
	} else {
		steps = append([]StepDefinition(nil), steps...)
	}

	wc := &workflowContext{
		instanceID:    instanceID,
		workflowType:  t,
		config:        cfg,
		steps:         steps,
		table:         buildTransitionTable(t, steps),
		current:       StepInitializing,
		previous:      StepIdle,
		data:          make(map[StepID]Payload),
		startedAt:     now,
		enteredStepAt: now,
	}
	wc.recompute()
	return wc
}

// apply runs one event through the transition table. It never fails: an
// illegal event appends a rejected-transition log entry and returns with the
// context unchanged. Cancel is universal from any non-terminal state.
func (wc *workflowContext) apply(event TransitionEvent, payload Payload, now time.Time) transitionResult {
	if terminalState(wc.current) {
		return wc.reject(event, now)
	}

	var (
		next StepID
		ok   bool
	)
	switch event {
	case EventCancel:
		next, ok = StepCancelled, true
	case EventStepFailed:
		next, ok = wc.table.nextStep(wc.current, event)
		if ok && wc.retries >= wc.config.MaxRetries {
			next = StepError
		}
	default:
		next, ok = wc.table.nextStep(wc.current, event)
	}
	if !ok {
		return wc.reject(event, now)
	}
	if event == EventSkip && !wc.config.AllowSkip {
		return wc.reject(event, now)
	}

	res := transitionResult{Applied: true, From: wc.current, To: next}

	switch event {
	case EventSubmitData, EventStepSucceeded:
		wc.mergeData(wc.current, payload)
	case EventStepFailed:
		wc.recordFailure(payload, next == StepError, now)
		res.BudgetExhausted = next == StepError
	}

	if next != wc.current {
		res.StepDuration = now.Sub(wc.enteredStepAt)
		wc.previous = wc.current
		wc.current = next
		wc.enteredStepAt = now
		if event != EventStepFailed {
			wc.retries = 0
		}
	}

	wc.recompute()
	wc.appendAction(ActionLogEntry{
		Timestamp: now,
		Event:     event,
		EventName: event.String(),
		Step:      res.From,
		Duration:  res.StepDuration,
	})

	return res
}

func (wc *workflowContext) reject(event TransitionEvent, now time.Time) transitionResult {
	wc.rejected++
	wc.appendAction(ActionLogEntry{
		Timestamp: now,
		Event:     event,
		EventName: event.String(),
		Step:      wc.current,
		Rejected:  true,
	})
	return transitionResult{From: wc.current, To: wc.current}
}

func (wc *workflowContext) mergeData(step StepID, payload Payload) {
	if len(payload) == 0 {
		return
	}
	data := wc.data[step]
	if data == nil {
		data = make(Payload, len(payload))
		wc.data[step] = data
	}
	for k, v := range payload {
		data[k] = v
	}
}

// recordFailure appends to the error log and advances the retry counter. The
// counter only grows while the workflow stays on the failing step; it resets
// when the step finally advances.
func (wc *workflowContext) recordFailure(payload Payload, exhausted bool, now time.Time) {
	entry := ErrorLogEntry{
		Timestamp:   now,
		Step:        wc.current,
		Event:       EventStepFailed,
		EventName:   EventStepFailed.String(),
		Recoverable: !exhausted,
	}
	if err, ok := payload["error"].(error); ok && err != nil {
		entry.Message = err.Error()
	} else if msg, ok := payload["error"].(string); ok {
		entry.Message = msg
	}
	if exhausted {
		entry.Message = ErrRetryBudgetExceeded.Error() + ": " + entry.Message
	} else {
		wc.retries++
	}
	wc.errors = append(wc.errors, entry)
}

// recompute refreshes progress and the navigability flags after every apply.
// Progress derives from the step index; terminal failure states keep the last
// value so the presentation layer can show where the workflow stopped.
func (wc *workflowContext) recompute() {
	switch {
	case wc.current == StepInitializing:
		wc.progress = 0
	case wc.current == StepCompleted:
		wc.progress = 100
	case terminalState(wc.current):
		// keep last progress
	default:
		if idx := wc.stepIndex(wc.current); idx >= 0 && len(wc.steps) > 1 {
			wc.progress = float64(idx) / float64(len(wc.steps)-1) * 100
		}
	}

	if terminalState(wc.current) {
		wc.flags = NavigationFlags{}
		return
	}

	entry := wc.table[wc.current]
	_, canNext := entry[EventNext]
	_, canPrev := entry[EventPrevious]
	_, canSkip := entry[EventSkip]
	wc.flags = NavigationFlags{
		CanGoNext:     canNext,
		CanGoPrevious: canPrev,
		CanSkip:       canSkip && wc.config.AllowSkip,
		CanCancel:     true,
	}
}

func (wc *workflowContext) stepIndex(id StepID) int {
	for i, def := range wc.steps {
		if def.ID == id {
			return i
		}
	}
	return -1
}

func (wc *workflowContext) stepDefinition(id StepID) (StepDefinition, bool) {
	if idx := wc.stepIndex(id); idx >= 0 {
		return wc.steps[idx], true
	}
	return StepDefinition{}, false
}

func (wc *workflowContext) appendAction(entry ActionLogEntry) {
	wc.actions = append(wc.actions, entry)
}

func (wc *workflowContext) lastError() string {
	if len(wc.errors) == 0 {
		return ""
	}
	return wc.errors[len(wc.errors)-1].Message
}

// snapshot builds the read-only view model handed to the presentation layer.
// All reference fields are copied.
func (wc *workflowContext) snapshot() ContextSnapshot {
	data := make(map[StepID]Payload, len(wc.data))
	for step, payload := range wc.data {
		next := make(Payload, len(payload))
		for k, v := range payload {
			next[k] = v
		}
		data[step] = next
	}

	return ContextSnapshot{
		InstanceID:   wc.instanceID,
		WorkflowType: wc.workflowType,
		CurrentStep:  wc.current,
		PreviousStep: wc.previous,
		Progress:     wc.progress,
		Flags:        wc.flags,
		RetryCount:   wc.retries,
		StartedAt:    wc.startedAt,
		LastError:    wc.lastError(),
		StepData:     data,
		Actions:      append([]ActionLogEntry(nil), wc.actions...),
		Errors:       append([]ErrorLogEntry(nil), wc.errors...),
	}
}

// analytics derives the on-demand analytics view. Step durations come from the
// action log; the entry for the step currently in progress is not included
// until the workflow leaves it.
func (wc *workflowContext) analytics(now time.Time) AnalyticsSnapshot {
	durations := make(map[StepID]time.Duration)
	for _, a := range wc.actions {
		if a.Rejected {
			continue
		}
		if a.Duration > 0 {
			durations[a.Step] += a.Duration
		}
	}
	retries := 0
	for _, e := range wc.errors {
		if e.Recoverable {
			retries++
		}
	}

	total := now.Sub(wc.startedAt)
	completion := wc.progress / 100

	return AnalyticsSnapshot{
		InstanceID:          wc.instanceID,
		Workflow:            wc.workflowType.String(),
		TotalDuration:       total,
		StepDurations:       durations,
		ErrorCount:          len(wc.errors),
		RetryCount:          retries,
		RejectedTransitions: wc.rejected,
		CompletionRatio:     completion,
	}
}
