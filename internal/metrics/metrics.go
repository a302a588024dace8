package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons for discarding an inbound signal.
const (
	ReasonExpired = "expired"
	ReasonStale   = "stale"
	ReasonOrphan  = "orphan"
	ReasonNoMatch = "no_match"
)

var (
	SignalsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swpt_debtors_signals_received_total",
		Help: "Inbound signals received from the accounting service",
	}, []string{"kind"})

	SignalsDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swpt_debtors_signals_discarded_total",
		Help: "Inbound signals ignored because they were late, stale or unmatched",
	}, []string{"kind", "reason"})

	SignalsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swpt_debtors_signals_emitted_total",
		Help: "Outbound signals recorded in the outbox",
	}, []string{"kind"})

	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swpt_debtors_outbox_published_total",
		Help: "Outbox messages delivered to the accounting service",
	})

	OutboxPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swpt_debtors_outbox_publish_failures_total",
		Help: "Failed attempts to deliver outbox messages",
	})

	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swpt_debtors_rpc_duration_seconds",
		Help:    "RPC latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "code"})
)
