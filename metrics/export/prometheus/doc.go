// Package prometheus renders goSession metrics in Prometheus text exposition format.
//
// [NewPrometheusExporter] reads a [goSession.Manager] and exposes an [http.Handler].
// Counters are named gosession_*_total; the single histogram is
// gosession_refresh_latency_seconds. When the source reports a lifecycle state,
// gosession_state is emitted as a gauge with one series per state.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate manager state.
package prometheus
