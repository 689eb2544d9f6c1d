package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram.
type MetricID uint16

const (
	// MetricInitialSessionLoaded counts bootstrap reads that returned a session.
	MetricInitialSessionLoaded MetricID = iota
	// MetricInitialSessionFailure counts bootstrap reads that failed and fell back to no session.
	MetricInitialSessionFailure
	// MetricNotificationForwarded counts auth-state notifications forwarded to subscribers.
	MetricNotificationForwarded
	// MetricSessionInstalled counts sessions installed into the manager.
	MetricSessionInstalled
	// MetricSessionCleared counts null-session notifications.
	MetricSessionCleared
	// MetricRefreshScheduled counts armed refresh timers.
	MetricRefreshScheduled
	// MetricRefreshImmediate counts refreshes dispatched because the session was inside the window.
	MetricRefreshImmediate
	// MetricRefreshSuccess counts refreshes that returned a new session.
	MetricRefreshSuccess
	// MetricRefreshEmpty counts refreshes the provider declined without error.
	MetricRefreshEmpty
	// MetricRefreshFailure counts refreshes that returned an error.
	MetricRefreshFailure
	// MetricRefreshCoalesced counts refresh triggers dropped because one was already in flight.
	MetricRefreshCoalesced
	// MetricRefreshStale counts timers or results discarded because a newer session superseded them.
	MetricRefreshStale
	// MetricSessionInvalidated counts emitted invalidations.
	MetricSessionInvalidated
	// MetricExpiryUnknown counts sessions installed without a usable expiry.
	MetricExpiryUnknown
	// MetricSignOut counts successful sign-outs.
	MetricSignOut
	// MetricSignOutFailure counts failed sign-outs.
	MetricSignOutFailure
	// MetricRefreshLatency is the provider refresh latency histogram.
	MetricRefreshLatency
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

// Metrics is a lock-free set of counters and one latency histogram.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics].
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a Metrics set.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only [MetricRefreshLatency] has a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricRefreshLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
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
		if id == MetricRefreshLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRefreshLatency].buckets[i])
		}
		s.Histograms[MetricRefreshLatency] = buckets
	}

	return s
}

// bucketIndex maps a refresh round-trip onto upper bounds of
// 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s and +Inf.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 50:
		return 0
	case ms <= 100:
		return 1
	case ms <= 250:
		return 2
	case ms <= 500:
		return 3
	case ms <= 1000:
		return 4
	case ms <= 2500:
		return 5
	case ms <= 5000:
		return 6
	default:
		return 7
	}
}
