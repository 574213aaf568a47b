// Package prometheus renders authflow metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts an [authflow.Controller] and exposes an
// [net/http.Handler] that renders all counters and histograms. Counter names
// are prefixed authflow_*_total; the single histogram is
// authflow_step_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate controller state.
package prometheus
