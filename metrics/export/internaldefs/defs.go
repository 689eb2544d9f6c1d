package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricInitialSessionLoaded, Name: "gosession_initial_session_loaded_total", Help: "Bootstrap reads that returned a session."},
	{ID: goSession.MetricInitialSessionFailure, Name: "gosession_initial_session_failure_total", Help: "Bootstrap reads that failed."},
	{ID: goSession.MetricNotificationForwarded, Name: "gosession_notification_forwarded_total", Help: "Auth-state notifications forwarded to subscribers."},
	{ID: goSession.MetricSessionInstalled, Name: "gosession_session_installed_total", Help: "Sessions installed into the manager."},
	{ID: goSession.MetricSessionCleared, Name: "gosession_session_cleared_total", Help: "Null-session notifications."},
	{ID: goSession.MetricRefreshScheduled, Name: "gosession_refresh_scheduled_total", Help: "Armed refresh timers."},
	{ID: goSession.MetricRefreshImmediate, Name: "gosession_refresh_immediate_total", Help: "Refreshes dispatched inside the refresh window."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Refreshes that returned a new session."},
	{ID: goSession.MetricRefreshEmpty, Name: "gosession_refresh_empty_total", Help: "Refreshes the provider declined without error."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Refreshes that returned an error."},
	{ID: goSession.MetricRefreshCoalesced, Name: "gosession_refresh_coalesced_total", Help: "Refresh triggers joined to an in-flight refresh."},
	{ID: goSession.MetricRefreshStale, Name: "gosession_refresh_stale_total", Help: "Refresh triggers or results discarded for a replaced session."},
	{ID: goSession.MetricSessionInvalidated, Name: "gosession_session_invalidated_total", Help: "Emitted session invalidations."},
	{ID: goSession.MetricExpiryUnknown, Name: "gosession_expiry_unknown_total", Help: "Sessions installed without a usable expiry."},
	{ID: goSession.MetricSignOut, Name: "gosession_sign_out_total", Help: "Successful sign-outs."},
	{ID: goSession.MetricSignOutFailure, Name: "gosession_sign_out_failure_total", Help: "Failed sign-outs."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricRefreshLatency, Name: "gosession_refresh_latency_seconds", Help: "Provider refresh latency histogram."},
}

// HistogramBounds are the le labels of the latency buckets.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramBoundSuffix is the instrument-name form of HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
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
