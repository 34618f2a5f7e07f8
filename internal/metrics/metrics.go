package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "automaton_insight"
)

var (
	insightDurationBuckets = []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120}

	// Insight Metrics
	InsightRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "insight_requests_total",
		Help:      "Count of structured insight invocations.",
	}, []string{"provider", "status", "kind"})

	InsightDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "insight_duration_seconds",
		Help:      "Time taken for an insight invocation, retries included.",
		Buckets:   insightDurationBuckets,
	}, []string{"provider"})

	GatewayAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_attempts_total",
		Help:      "Count of calls made to the completion gateway.",
	}, []string{"provider", "outcome"})

	SlotSupersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slot_superseded_total",
		Help:      "Count of results discarded because a newer trigger was issued.",
	})

	// Event bus Metrics
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Count of events appended to the shared event log.",
	}, []string{"kind"})

	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Count of events not delivered to a slow subscriber.",
	})

	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests served.",
	}, []string{"method", "route", "code"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "HTTP requests currently being served.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Latency of HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)
