package authflow

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AnalyticsEvent is the structured record emitted for every dispatched
// workflow event and every step executor outcome.
type AnalyticsEvent struct {
	Timestamp  time.Time         `json:"timestamp"`
	InstanceID string            `json:"instance_id,omitempty"`
	Workflow   string            `json:"workflow,omitempty"`
	EventType  string            `json:"event_type"`
	Step       string            `json:"step,omitempty"`
	DeviceID   string            `json:"device_id,omitempty"`
	IP         string            `json:"ip,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	DurationMS int64             `json:"duration_ms,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AnalyticsSink receives [AnalyticsEvent] values from the recorder's
// asynchronous dispatcher.
type AnalyticsSink interface {
	Emit(ctx context.Context, event AnalyticsEvent)
}

// NoOpSink silently discards all events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AnalyticsEvent) {}

// ChannelSink writes events into a buffered channel for external telemetry
// systems to drain.
type ChannelSink struct {
	events chan AnalyticsEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AnalyticsEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AnalyticsEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AnalyticsEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AnalyticsEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
