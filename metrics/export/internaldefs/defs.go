package internaldefs

import (
	authflow "github.com/MrEthical07/authflow"
)

// CounterDef binds one core counter to its stable exported name.
type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// HistogramDef binds one core histogram to its stable exported name.
type HistogramDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// CounterDefs enumerates every exported counter. Order is the exposition order.
var CounterDefs = []CounterDef{
	{ID: authflow.MetricWorkflowStarted, Name: "authflow_workflow_started_total", Help: "Started workflow instances."},
	{ID: authflow.MetricWorkflowCompleted, Name: "authflow_workflow_completed_total", Help: "Workflows reaching the completed state."},
	{ID: authflow.MetricWorkflowCancelled, Name: "authflow_workflow_cancelled_total", Help: "Workflows cancelled by the caller."},
	{ID: authflow.MetricWorkflowErrored, Name: "authflow_workflow_errored_total", Help: "Workflows forced into the error state."},
	{ID: authflow.MetricWorkflowReset, Name: "authflow_workflow_reset_total", Help: "Reset operations."},
	{ID: authflow.MetricStepAttempted, Name: "authflow_step_attempted_total", Help: "Step executions handed to the executor."},
	{ID: authflow.MetricStepSucceeded, Name: "authflow_step_succeeded_total", Help: "Step executions resolved successfully."},
	{ID: authflow.MetricStepFailed, Name: "authflow_step_failed_total", Help: "Step executions resolved with a failure."},
	{ID: authflow.MetricStepTimeout, Name: "authflow_step_timeout_total", Help: "Step executions cancelled by their deadline."},
	{ID: authflow.MetricStepRetried, Name: "authflow_step_retried_total", Help: "Accepted retry events."},
	{ID: authflow.MetricStepSkipped, Name: "authflow_step_skipped_total", Help: "Accepted skip events."},
	{ID: authflow.MetricTransitionApplied, Name: "authflow_transition_applied_total", Help: "Accepted workflow transitions."},
	{ID: authflow.MetricTransitionRejected, Name: "authflow_transition_rejected_total", Help: "Events illegal for their current step."},
	{ID: authflow.MetricConcurrentRejected, Name: "authflow_concurrent_rejected_total", Help: "Submissions rejected by the single-in-flight rule."},
	{ID: authflow.MetricRetryBudgetExceeded, Name: "authflow_retry_budget_exceeded_total", Help: "Steps whose retry budget ran out."},
}

// HistogramDefs enumerates every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authflow.MetricStepLatency, Name: "authflow_step_latency_seconds", Help: "Step execution latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, Prometheus notation.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds with OTel-safe name suffixes.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
