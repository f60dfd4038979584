package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	FiringsTotal      *prometheus.CounterVec
	RecipientsSent    prometheus.Counter
	RecipientsFailed  prometheus.Counter
	GatewayLatency    prometheus.Histogram
	RetryJobsEnqueued prometheus.Counter
	JobQueueDepth     *prometheus.GaugeVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FiringsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "firings_total",
			Help: "Total number of dispatch firings, labeled by outcome status.",
		}, []string{"status"}),

		RecipientsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recipients_sent_total",
			Help: "Total number of recipients successfully delivered to.",
		}),

		RecipientsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recipients_failed_total",
			Help: "Total number of recipients that failed delivery (permanent or exhausted retry).",
		}),

		GatewayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_multicast_seconds",
			Help:    "Latency of a single push-gateway SendMulticast call.",
			Buckets: prometheus.DefBuckets,
		}),

		RetryJobsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retry_jobs_enqueued_total",
			Help: "Total number of retry jobs enqueued for transient gateway failures.",
		}),

		JobQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "job_queue_depth",
			Help: "Current number of jobs in the queue, labeled by state.",
		}, []string{"state"}),
	}

	reg.MustRegister(
		m.FiringsTotal,
		m.RecipientsSent,
		m.RecipientsFailed,
		m.GatewayLatency,
		m.RetryJobsEnqueued,
		m.JobQueueDepth,
	)

	return m
}

// ObserveGatewayCall records one SendMulticast round trip's latency.
func (m *Metrics) ObserveGatewayCall(d time.Duration) {
	m.GatewayLatency.Observe(d.Seconds())
}
