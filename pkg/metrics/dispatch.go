package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records backend round trips made by the desk.
type DispatchMetrics struct {
	duration      *prometheus.HistogramVec
	outcomes      *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	fetchFailure  *prometheus.CounterVec
	staleCommits  prometheus.Counter
}

// NewDispatchMetrics registers the desk metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orderdesk_dispatch_duration_seconds",
		Help:    "Duration of transition dispatches in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderdesk_dispatch_total",
		Help: "Transition dispatches by outcome.",
	}, []string{"operation", "outcome"})
	fetchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orderdesk_fetch_duration_seconds",
		Help:    "Duration of suborder fetches in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"actor"})
	fetchFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderdesk_fetch_failure",
		Help: "Failed suborder fetches.",
	}, []string{"actor"})
	staleCommits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orderdesk_view_stale_commits",
		Help: "Fetched snapshots dropped because a newer view was already committed.",
	})
	reg.MustRegister(duration, outcomes, fetchDuration, fetchFailure, staleCommits)
	return &DispatchMetrics{
		duration:      duration,
		outcomes:      outcomes,
		fetchDuration: fetchDuration,
		fetchFailure:  fetchFailure,
		staleCommits:  staleCommits,
	}
}

// ObserveDispatch records the duration and outcome of one dispatch.
func (m *DispatchMetrics) ObserveDispatch(operation, outcome string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	op := normalizeLabel(operation)
	m.duration.WithLabelValues(op).Observe(duration.Seconds())
	m.outcomes.WithLabelValues(op, normalizeLabel(outcome)).Inc()
}

// ObserveFetch records a suborder fetch for the given actor kind.
func (m *DispatchMetrics) ObserveFetch(actor string, duration time.Duration, err error) {
	if m == nil || m.fetchDuration == nil {
		return
	}
	label := normalizeLabel(actor)
	m.fetchDuration.WithLabelValues(label).Observe(duration.Seconds())
	if err != nil {
		m.fetchFailure.WithLabelValues(label).Inc()
	}
}

// IncStaleCommit counts a snapshot discarded by generation fencing.
func (m *DispatchMetrics) IncStaleCommit() {
	if m == nil || m.staleCommits == nil {
		return
	}
	m.staleCommits.Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
