package authflow

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type collectSink struct {
	mu     sync.Mutex
	events []AnalyticsEvent
}

func (s *collectSink) Emit(_ context.Context, event AnalyticsEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *collectSink) snapshot() []AnalyticsEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AnalyticsEvent(nil), s.events...)
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, AnalyticsEvent) {
	<-s.release
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &collectSink{}
	d := newAnalyticsDispatcher(AnalyticsConfig{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AnalyticsEvent{EventType: "transition", Step: string(rune('a' + i))})
	}
	d.Close()

	events := sink.snapshot()
	if len(events) != 5 {
		t.Fatalf("expected 5 events after drain, got %d", len(events))
	}
	for i, e := range events {
		if e.Step != string(rune('a'+i)) {
			t.Fatalf("event %d out of order: %q", i, e.Step)
		}
	}
}

func TestDispatcherDisabled(t *testing.T) {
	d := newAnalyticsDispatcher(AnalyticsConfig{}, &collectSink{})
	if d != nil {
		t.Fatal("disabled analytics must produce a nil dispatcher")
	}
	// Nil receiver is safe.
	d.Emit(context.Background(), AnalyticsEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newAnalyticsDispatcher(AnalyticsConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// Saturate the worker and the single-slot buffer, then overflow.
	deadline := time.Now().Add(time.Second)
	for d.Dropped() == 0 && time.Now().Before(deadline) {
		d.Emit(context.Background(), AnalyticsEvent{EventType: "transition"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events under backpressure")
	}

	close(sink.release)
	d.Close()
}

func TestDispatcherEmitAfterClose(t *testing.T) {
	sink := &collectSink{}
	d := newAnalyticsDispatcher(AnalyticsConfig{Enabled: true, BufferSize: 4}, sink)
	d.Close()

	d.Emit(context.Background(), AnalyticsEvent{EventType: "transition"})
	if got := len(sink.snapshot()); got != 0 {
		t.Fatalf("expected no delivery after close, got %d", got)
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AnalyticsEvent{EventType: "workflow_started", Workflow: "login", Success: true})
	sink.Emit(context.Background(), AnalyticsEvent{EventType: "cancel", Workflow: "login"})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var event AnalyticsEvent
	if err := json.Unmarshal(lines[0], &event); err != nil {
		t.Fatalf("unmarshal line: %v", err)
	}
	if event.EventType != "workflow_started" || !event.Success {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestChannelSinkRespectsContext(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Emit(context.Background(), AnalyticsEvent{EventType: "one"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Buffer is full; a cancelled context must not block.
	done := make(chan struct{})
	go func() {
		sink.Emit(ctx, AnalyticsEvent{EventType: "two"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a cancelled context")
	}
}
