package syncrelay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for replication to the compliance store.
type Metrics struct {
	Synced prometheus.Counter

	Attempts prometheus.Counter

	// PermanentFailures counts events that exhausted their retry budget.
	// This feeds the operational dashboard; failed syncs are never
	// silently dropped.
	PermanentFailures prometheus.Counter

	QueueDepth prometheus.Gauge
}

// NewMetrics creates and registers all sync relay metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Synced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_sync_synced_total",
			Help: "Total audit events replicated to the compliance store",
		}),
		Attempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_sync_attempts_total",
			Help: "Total sync attempts including retries",
		}),
		PermanentFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_sync_permanent_failures_total",
			Help: "Total audit events that exhausted their sync retry budget",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sentra_sync_queue_depth",
			Help: "Audit events currently queued for replication",
		}),
	}
}

func (m *Metrics) IncSynced() {
	if m != nil {
		m.Synced.Inc()
	}
}

func (m *Metrics) IncAttempts() {
	if m != nil {
		m.Attempts.Inc()
	}
}

func (m *Metrics) IncPermanentFailures() {
	if m != nil {
		m.PermanentFailures.Inc()
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}
