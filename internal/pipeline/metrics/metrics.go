package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the processing pipeline.
type Metrics struct {
	// Decisions by processing method and outcome status.
	Decisions *prometheus.CounterVec

	// Fallback transitions, at init and in flight.
	Fallbacks *prometheus.CounterVec

	// Emergency blocks are the fail-safe terminal outcome; any non-zero
	// rate warrants attention.
	EmergencyBlocks prometheus.Counter

	// Decision cache hits.
	CacheHits prometheus.Counter

	// End-to-end Process latency.
	ProcessLatency prometheus.Histogram
}

// New creates and registers all pipeline metrics.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_pipeline_decisions_total",
			Help: "Total pipeline decisions by processing method and status",
		}, []string{"method", "status"}),

		Fallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_pipeline_fallbacks_total",
			Help: "Total capability fallbacks by from and to method",
		}, []string{"from", "to"}),

		EmergencyBlocks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_pipeline_emergency_blocks_total",
			Help: "Total requests that ended in the emergency fail-safe",
		}),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sentra_pipeline_cache_hits_total",
			Help: "Total decisions served from the decision cache",
		}),

		ProcessLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentra_pipeline_process_duration_seconds",
			Help:    "Duration of full pipeline processing per request",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncDecision records a decision outcome.
func (m *Metrics) IncDecision(method, status string) {
	if m != nil {
		m.Decisions.WithLabelValues(method, status).Inc()
	}
}

// IncFallback records a capability fallback.
func (m *Metrics) IncFallback(from, to string) {
	if m != nil {
		m.Fallbacks.WithLabelValues(from, to).Inc()
	}
}

// IncEmergencyBlock records an emergency block.
func (m *Metrics) IncEmergencyBlock() {
	if m != nil {
		m.EmergencyBlocks.Inc()
	}
}

// IncCacheHit records a decision served from cache.
func (m *Metrics) IncCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

// ObserveProcessLatency records the duration of one Process call.
func (m *Metrics) ObserveProcessLatency(d time.Duration) {
	if m != nil {
		m.ProcessLatency.Observe(d.Seconds())
	}
}
