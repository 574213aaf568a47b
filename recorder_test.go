package authflow

import (
	"context"
	"fmt"
	"testing"
)

func newTestRecorder(maxLog int) *Recorder {
	cfg := AnalyticsConfig{Enabled: true, BufferSize: 16, DropIfFull: true, MaxLogEntries: maxLog}
	return newRecorder(cfg, NewMetrics(MetricsConfig{Enabled: true}), nil)
}

func TestRecorderBoundedEventLog(t *testing.T) {
	r := newTestRecorder(3)
	defer r.Close()

	for i := 0; i < 5; i++ {
		r.record(context.Background(), AnalyticsEvent{
			InstanceID: "wf-1",
			EventType:  fmt.Sprintf("event-%d", i),
		})
	}

	events := r.Events("wf-1")
	if len(events) != 3 {
		t.Fatalf("expected log bounded to 3, got %d", len(events))
	}
	if events[0].EventType != "event-2" || events[2].EventType != "event-4" {
		t.Fatalf("expected oldest evicted first, got %q..%q", events[0].EventType, events[2].EventType)
	}
}

func TestRecorderSeparatesInstances(t *testing.T) {
	r := newTestRecorder(16)
	defer r.Close()

	r.record(context.Background(), AnalyticsEvent{InstanceID: "wf-1", EventType: "a"})
	r.record(context.Background(), AnalyticsEvent{InstanceID: "wf-2", EventType: "b"})

	if got := len(r.Events("wf-1")); got != 1 {
		t.Fatalf("wf-1: expected 1 event, got %d", got)
	}
	if got := len(r.Events("wf-2")); got != 1 {
		t.Fatalf("wf-2: expected 1 event, got %d", got)
	}

	r.Forget("wf-1")
	if got := len(r.Events("wf-1")); got != 0 {
		t.Fatalf("expected forgotten instance to be empty, got %d", got)
	}
	if got := len(r.Events("wf-2")); got != 1 {
		t.Fatalf("forget must not touch other instances, got %d", got)
	}
}

func TestRecorderEventsReturnsCopy(t *testing.T) {
	r := newTestRecorder(16)
	defer r.Close()

	r.record(context.Background(), AnalyticsEvent{InstanceID: "wf-1", EventType: "a"})
	events := r.Events("wf-1")
	events[0].EventType = "tampered"

	if r.Events("wf-1")[0].EventType != "a" {
		t.Fatal("Events must return a copy")
	}
}

func TestRecorderNilSafe(t *testing.T) {
	var r *Recorder
	r.record(context.Background(), AnalyticsEvent{InstanceID: "wf-1"})
	r.inc(MetricWorkflowStarted)
	r.Close()

	if got := r.Events("wf-1"); got != nil {
		t.Fatalf("expected nil events, got %v", got)
	}
	if r.AnalyticsDropped() != 0 {
		t.Fatal("nil recorder must report zero drops")
	}
	snap := r.MetricsSnapshot()
	if len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestExportReportUnsupportedFormat(t *testing.T) {
	r := newTestRecorder(16)
	defer r.Close()

	if _, err := r.exportReport("yaml", AnalyticsSnapshot{}); err != ErrUnsupportedReportFormat {
		t.Fatalf("expected ErrUnsupportedReportFormat, got %v", err)
	}
}
