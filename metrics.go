package qrep

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Job outcomes as recorded by Metrics.
const (
	OutcomeCompleted  = "completed"
	OutcomeIncomplete = "incomplete"
	OutcomeRejected   = "rejected"
	OutcomeFailed     = "failed"
)

/*
Metrics tracks backend job activity for a device. The plain fields are kept for
in-process inspection and ExportMetrics; the Prometheus collectors mirror them
when a registerer is supplied.
*/
type Metrics struct {
	mu sync.RWMutex

	JobCount        int64
	CompletedJobs   int64
	IncompleteJobs  int64
	RejectedJobs    int64
	FailedJobs      int64
	ThrottledJobs   int64
	BreakerOpenings int64
	TrialsCompleted int64
	TotalJobTime    time.Duration

	AverageJobLatency time.Duration
	P95JobLatency     time.Duration
	P99JobLatency     time.Duration
	JobSuccessRate    float64

	latencies  []time.Duration
	windowSize int

	jobs      *prometheus.CounterVec
	latency   prometheus.Histogram
	throttled prometheus.Counter
	breaker   prometheus.Counter
	trials    *prometheus.CounterVec
}

/*
NewMetrics creates device metrics. When reg is non-nil the collectors are
registered on it; passing nil keeps the metrics purely in-process.
*/
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		latencies:  make([]time.Duration, 0, 1000),
		windowSize: 1000,
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qrep",
			Name:      "backend_jobs_total",
			Help:      "Backend jobs by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qrep",
			Name:      "backend_job_seconds",
			Help:      "Wall time of backend jobs.",
			Buckets:   prometheus.DefBuckets,
		}),
		throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qrep",
			Name:      "backend_throttled_total",
			Help:      "Submissions held back by the rate limiter.",
		}),
		breaker: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qrep",
			Name:      "breaker_open_total",
			Help:      "Times the circuit breaker opened.",
		}),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qrep",
			Name:      "trials_total",
			Help:      "Completed trials by code distance.",
		}, []string{"distance"}),
	}

	if reg != nil {
		reg.MustRegister(m.jobs, m.latency, m.throttled, m.breaker, m.trials)
	}

	return m
}

// JobCounter exposes the per-outcome job counter.
func (m *Metrics) JobCounter(outcome string) prometheus.Counter {
	return m.jobs.WithLabelValues(outcome)
}

// TrialCounter exposes the per-distance trial counter.
func (m *Metrics) TrialCounter(distance string) prometheus.Counter {
	return m.trials.WithLabelValues(distance)
}

func (m *Metrics) recordJobExecution(startTime time.Time, outcome string) {
	duration := time.Since(startTime)

	m.jobs.WithLabelValues(outcome).Inc()
	m.latency.Observe(duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalJobTime += duration
	m.JobCount++

	switch outcome {
	case OutcomeCompleted:
		m.CompletedJobs++
	case OutcomeIncomplete:
		m.IncompleteJobs++
	case OutcomeRejected:
		m.RejectedJobs++
	default:
		m.FailedJobs++
	}

	m.JobSuccessRate = float64(m.CompletedJobs) / float64(m.JobCount)
	m.updateLatencyPercentiles(duration)
}

func (m *Metrics) recordThrottle() {
	m.throttled.Inc()

	m.mu.Lock()
	m.ThrottledJobs++
	m.mu.Unlock()
}

func (m *Metrics) recordBreakerOpen() {
	m.breaker.Inc()

	m.mu.Lock()
	m.BreakerOpenings++
	m.mu.Unlock()
}

func (m *Metrics) recordTrial(distance string) {
	m.trials.WithLabelValues(distance).Inc()

	m.mu.Lock()
	m.TrialsCompleted++
	m.mu.Unlock()
}

// updateLatencyPercentiles assumes the caller holds the mutex.
func (m *Metrics) updateLatencyPercentiles(duration time.Duration) {
	m.AverageJobLatency = m.TotalJobTime / time.Duration(m.JobCount)

	m.latencies = append(m.latencies, duration)
	if len(m.latencies) > m.windowSize {
		m.latencies = m.latencies[1:]
	}

	sorted := append([]time.Duration(nil), m.latencies...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	if len(sorted) > 0 {
		p95Index := min(int(float64(len(sorted))*0.95), len(sorted)-1)
		p99Index := min(int(float64(len(sorted))*0.99), len(sorted)-1)

		m.P95JobLatency = sorted[p95Index]
		m.P99JobLatency = sorted[p99Index]
	}
}

// ExportMetrics returns a snapshot of the in-process counters.
func (m *Metrics) ExportMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"jobs":             m.JobCount,
		"completed_jobs":   m.CompletedJobs,
		"incomplete_jobs":  m.IncompleteJobs,
		"rejected_jobs":    m.RejectedJobs,
		"failed_jobs":      m.FailedJobs,
		"throttled_jobs":   m.ThrottledJobs,
		"breaker_openings": m.BreakerOpenings,
		"trials_completed": m.TrialsCompleted,
		"success_rate":     m.JobSuccessRate,
		"avg_latency":      m.AverageJobLatency.Milliseconds(),
		"p95_latency":      m.P95JobLatency.Milliseconds(),
		"p99_latency":      m.P99JobLatency.Milliseconds(),
	}
}
