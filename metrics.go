package authflow

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a specific counter or histogram bucket in the
// in-process metrics system.
type MetricID uint16

const (
	// MetricWorkflowStarted counts StartWorkflow calls that created an instance.
	MetricWorkflowStarted MetricID = iota
	// MetricWorkflowCompleted counts workflows reaching the Completed state.
	MetricWorkflowCompleted
	// MetricWorkflowCancelled counts workflows reaching the Cancelled state.
	MetricWorkflowCancelled
	// MetricWorkflowErrored counts workflows forced into the Error state.
	MetricWorkflowErrored
	// MetricWorkflowReset counts Reset operations.
	MetricWorkflowReset
	// MetricStepAttempted counts step executions handed to the executor.
	MetricStepAttempted
	// MetricStepSucceeded counts step executions that resolved successfully.
	MetricStepSucceeded
	// MetricStepFailed counts step executions that resolved with a failure.
	MetricStepFailed
	// MetricStepTimeout counts step executions cancelled by their deadline.
	MetricStepTimeout
	// MetricStepRetried counts Retry events accepted by the state machine.
	MetricStepRetried
	// MetricStepSkipped counts Skip events accepted by the state machine.
	MetricStepSkipped
	// MetricTransitionApplied counts accepted transitions.
	MetricTransitionApplied
	// MetricTransitionRejected counts events illegal for their current step.
	MetricTransitionRejected
	// MetricConcurrentRejected counts submissions rejected by the
	// single-in-flight execution rule.
	MetricConcurrentRejected
	// MetricRetryBudgetExceeded counts steps whose retry budget ran out.
	MetricRetryBudgetExceeded
	// MetricStepLatency is the step execution latency histogram.
	MetricStepLatency

	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds cache-line-padded atomic counters and an optional step-latency
// histogram. All operations are no-ops when disabled.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time deep copy of all metrics, consumed by the
// exporters under metrics/export/.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc atomically increments the counter. Safe for concurrent use.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a step execution latency into the histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricStepLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot deep-copies all counters and histogram buckets.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricStepLatency].buckets[i])
		}
		s.Histograms[MetricStepLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
