package utils

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector tracks request, error and per-operation latency figures.
// The counters are also exported to Prometheus when a registerer is given.
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount uint64
	errorCount   uint64

	// Maps operation name to the latest latencies in nanoseconds
	operationTimes map[string][]int64

	systemStartTime time.Time

	requests  prometheus.Counter
	errors    prometheus.Counter
	latencies *prometheus.HistogramVec
}

// maxSamplesPerOperation bounds the in-memory latency window per operation.
const maxSamplesPerOperation = 1024

func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		operationTimes:  make(map[string][]int64),
		systemStartTime: time.Now(),
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rekindle",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests served.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rekindle",
			Name:      "http_errors_total",
			Help:      "Total HTTP responses with status >= 400.",
		}),
		latencies: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rekindle",
			Name:      "operation_duration_seconds",
			Help:      "Latency of store and actor operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(mc.requests, mc.errors, mc.latencies)
	}
	return mc
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requestCount++
	mc.requests.Inc()
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.errorCount++
	mc.errors.Inc()
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	samples := append(mc.operationTimes[operationName], duration.Nanoseconds())
	if len(samples) > maxSamplesPerOperation {
		samples = samples[len(samples)-maxSamplesPerOperation:]
	}
	mc.operationTimes[operationName] = samples
	mc.latencies.WithLabelValues(operationName).Observe(duration.Seconds())
}

// MetricsSnapshot is a point-in-time copy of the collector's figures.
type MetricsSnapshot struct {
	Requests       uint64                   `json:"requests"`
	Errors         uint64                   `json:"errors"`
	Uptime         string                   `json:"uptime"`
	AverageLatency map[string]time.Duration `json:"averageLatency"`
}

func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	avg := make(map[string]time.Duration, len(mc.operationTimes))
	for op, samples := range mc.operationTimes {
		if len(samples) == 0 {
			continue
		}
		var total int64
		for _, s := range samples {
			total += s
		}
		avg[op] = time.Duration(total / int64(len(samples)))
	}
	return MetricsSnapshot{
		Requests:       mc.requestCount,
		Errors:         mc.errorCount,
		Uptime:         time.Since(mc.systemStartTime).Round(time.Second).String(),
		AverageLatency: avg,
	}
}
