// Package otel binds goSession metrics to OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per goSession counter and one
// Int64ObservableGauge per latency bucket. A single callback reads
// [goSession.Manager.MetricsSnapshot] on each collection cycle. Sources that report a
// lifecycle state also get a gosession_state gauge.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate manager state.
package otel
