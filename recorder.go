package authflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Recorder passively observes every dispatched event and executor outcome. It
// maintains the atomic aggregate counters, an append-only per-instance event
// log bounded FIFO by Analytics.MaxLogEntries, and forwards events to the
// configured sink through the asynchronous dispatcher. The log survives past
// workflow completion for historical reporting; retention across instances is
// a caller concern.
type Recorder struct {
	metrics    *Metrics
	dispatcher *analyticsDispatcher
	maxLog     int

	mu     sync.Mutex
	events map[string][]AnalyticsEvent
}

func newRecorder(cfg AnalyticsConfig, metrics *Metrics, sink AnalyticsSink) *Recorder {
	return &Recorder{
		metrics:    metrics,
		dispatcher: newAnalyticsDispatcher(cfg, sink),
		maxLog:     cfg.MaxLogEntries,
		events:     make(map[string][]AnalyticsEvent),
	}
}

// record appends the event to the instance log and hands it to the dispatcher.
// The log bound evicts oldest entries first.
func (r *Recorder) record(ctx context.Context, event AnalyticsEvent) {
	if r == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if r.maxLog > 0 && event.InstanceID != "" {
		r.mu.Lock()
		log := append(r.events[event.InstanceID], event)
		if overflow := len(log) - r.maxLog; overflow > 0 {
			log = append(log[:0:0], log[overflow:]...)
		}
		r.events[event.InstanceID] = log
		r.mu.Unlock()
	}

	r.dispatcher.Emit(ctx, event)
}

// Events returns a copy of the recorded event log for one workflow instance.
func (r *Recorder) Events(instanceID string) []AnalyticsEvent {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AnalyticsEvent(nil), r.events[instanceID]...)
}

// Forget drops the retained event log of one instance. Called on Reset.
func (r *Recorder) Forget(instanceID string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.events, instanceID)
	r.mu.Unlock()
}

// MetricsSnapshot returns a point-in-time copy of all aggregate counters.
func (r *Recorder) MetricsSnapshot() MetricsSnapshot {
	if r == nil || r.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return r.metrics.Snapshot()
}

// AnalyticsDropped reports events shed by the dispatcher under backpressure.
func (r *Recorder) AnalyticsDropped() uint64 {
	if r == nil {
		return 0
	}
	return r.dispatcher.Dropped()
}

func (r *Recorder) inc(id MetricID) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.Inc(id)
}

func (r *Recorder) observe(id MetricID, d time.Duration) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.Observe(id, d)
}

// Close drains and stops the dispatcher.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.dispatcher.Close()
}

// report is the JSON shape produced by exportReport.
type report struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Analytics   AnalyticsSnapshot `json:"analytics"`
	Counters    map[string]uint64 `json:"counters"`
	Events      []AnalyticsEvent  `json:"events"`
}

var counterNames = map[MetricID]string{
	MetricWorkflowStarted:     "workflow_started",
	MetricWorkflowCompleted:   "workflow_completed",
	MetricWorkflowCancelled:   "workflow_cancelled",
	MetricWorkflowErrored:     "workflow_errored",
	MetricWorkflowReset:       "workflow_reset",
	MetricStepAttempted:       "step_attempted",
	MetricStepSucceeded:       "step_succeeded",
	MetricStepFailed:          "step_failed",
	MetricStepTimeout:         "step_timeout",
	MetricStepRetried:         "step_retried",
	MetricStepSkipped:         "step_skipped",
	MetricTransitionApplied:   "transition_applied",
	MetricTransitionRejected:  "transition_rejected",
	MetricConcurrentRejected:  "concurrent_rejected",
	MetricRetryBudgetExceeded: "retry_budget_exceeded",
}

// exportReport renders the snapshot, counters, and retained events as a
// structured document. Only "json" is supported.
func (r *Recorder) exportReport(format string, analytics AnalyticsSnapshot) ([]byte, error) {
	if format != "json" {
		return nil, ErrUnsupportedReportFormat
	}

	snapshot := r.MetricsSnapshot()
	counters := make(map[string]uint64, len(counterNames))
	for id, name := range counterNames {
		counters[name] = snapshot.Counters[id]
	}

	doc := report{
		GeneratedAt: time.Now(),
		Analytics:   analytics,
		Counters:    counters,
		Events:      r.Events(analytics.InstanceID),
	}
	return json.MarshalIndent(doc, "", "  ")
}
