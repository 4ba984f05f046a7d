package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"coursesync/internal/apperr"
)

// SyncMetrics holds the prometheus collectors updated by refresh passes.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	documents       *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	publishFailures prometheus.Counter
}

// NewSyncMetrics creates the sync collectors and registers them on reg.
func NewSyncMetrics(reg prometheus.Registerer) (*SyncMetrics, error) {
	m := &SyncMetrics{
		documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursesync_documents_total",
				Help: "Documents processed by refresh passes, by outcome.",
			},
			[]string{"outcome"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursesync_refreshes_total",
				Help: "Refresh passes, by result.",
			},
			[]string{"result"},
		),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coursesync_refresh_duration_seconds",
			Help:    "Wall time of complete refresh passes.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coursesync_publish_failures_total",
			Help: "Artifacts that could not be uploaded to object storage.",
		}),
	}

	for _, c := range []prometheus.Collector{m.documents, m.refreshes, m.refreshDuration, m.publishFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *SyncMetrics) outcome(o Outcome) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(string(o)).Inc()
}

func (m *SyncMetrics) failure(kind apperr.Kind) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues("failed_" + string(kind)).Inc()
}

func (m *SyncMetrics) refresh(result string, seconds float64) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
	if result != "busy" {
		m.refreshDuration.Observe(seconds)
	}
}

func (m *SyncMetrics) publishFailed() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}
