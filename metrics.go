package chatauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricLoginPrompted counts login prompts rendered into conversations.
	MetricLoginPrompted MetricID = iota
	// MetricLoginCancelled counts logins aborted by a cancellation word.
	MetricLoginCancelled
	// MetricCachedTokenHit counts dialogs satisfied by an existing token.
	MetricCachedTokenHit
	// MetricCallbackSuccess counts callbacks that committed a credential.
	MetricCallbackSuccess
	// MetricCallbackExchangeFailed counts rejected authorization codes.
	MetricCallbackExchangeFailed
	// MetricCallbackUnknownState counts callbacks with unresolvable state.
	MetricCallbackUnknownState
	// MetricCallbackThrottled counts callbacks denied by the throttle.
	MetricCallbackThrottled
	// MetricSessionWriteExhausted counts spent retry budgets.
	MetricSessionWriteExhausted
	// MetricMagicNumberIssued counts issued magic numbers.
	MetricMagicNumberIssued
	// MetricMagicNumberValidated counts successful echo validations.
	MetricMagicNumberValidated
	// MetricMagicNumberMismatch counts failed echo validations.
	MetricMagicNumberMismatch
	// MetricDialogResumed counts suspended dialogs resumed by the callback.
	MetricDialogResumed
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricCallbackLatency is the callback handling latency histogram.
	MetricCallbackLatency
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

// Metrics is a fixed set of lock-free counters plus one latency histogram
// for the callback path. All methods are safe for concurrent use and are
// no-ops on a nil or disabled receiver.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a Metrics registry per the config.
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

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a callback latency sample.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricCallbackLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram.
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
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricCallbackLatency].buckets[i])
		}
		s.Histograms[MetricCallbackLatency] = buckets
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
