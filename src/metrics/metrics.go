// Package metrics provides Prometheus metrics for the oracle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SubmissionsTotal counts submit calls by result ("accepted" or a rejection reason).
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_submissions_total",
			Help: "Total number of price submissions by result",
		},
		[]string{"result"},
	)

	// PublishesTotal counts published consensus prices per pair.
	PublishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_publishes_total",
			Help: "Total number of consensus prices published",
		},
		[]string{"pair"},
	)

	// QuorumDeferredTotal counts rounds that did not reach the majority threshold.
	QuorumDeferredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_quorum_deferred_total",
			Help: "Total number of aggregation rounds deferred for lack of quorum",
		},
		[]string{"pair"},
	)

	// PublishedPrice is the last published consensus price per pair.
	PublishedPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oracle_published_price",
			Help: "Last published consensus price",
		},
		[]string{"pair"},
	)

	// RoundReporters is the number of fresh reporters in the last round per pair.
	RoundReporters = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oracle_round_reporters",
			Help: "Number of fresh reporters seen in the last aggregation round",
		},
		[]string{"pair"},
	)

	// RoundSpread is the population standard deviation of the last round per pair.
	RoundSpread = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oracle_round_spread",
			Help: "Standard deviation of reported prices in the last aggregation round",
		},
		[]string{"pair"},
	)

	// SubmitDuration is a histogram of submit call latency, storage included.
	SubmitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oracle_submit_duration_seconds",
			Help:    "Duration of submit calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ActiveProducers is the size of the active producer set.
	ActiveProducers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_active_producers",
			Help: "Number of active producers the quorum is computed from",
		},
	)

	// HTTPRequestsTotal counts API requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		SubmissionsTotal,
		PublishesTotal,
		QuorumDeferredTotal,
		PublishedPrice,
		RoundReporters,
		RoundSpread,
		SubmitDuration,
		ActiveProducers,
		HTTPRequestsTotal,
	)
}

// RecordSubmission records the result of one submit call.
func RecordSubmission(result string, duration time.Duration) {
	SubmissionsTotal.WithLabelValues(result).Inc()
	SubmitDuration.Observe(duration.Seconds())
}

// RecordPublish records a published consensus price.
func RecordPublish(pair string, price float64) {
	PublishesTotal.WithLabelValues(pair).Inc()
	PublishedPrice.WithLabelValues(pair).Set(price)
}

// RecordRound records the reporter count and spread of one aggregation round.
func RecordRound(pair string, reporters int, spread float64) {
	RoundReporters.WithLabelValues(pair).Set(float64(reporters))
	RoundSpread.WithLabelValues(pair).Set(spread)
}

// RecordQuorumDeferred records a round that did not reach quorum.
func RecordQuorumDeferred(pair string) {
	QuorumDeferredTotal.WithLabelValues(pair).Inc()
}

// RecordActiveProducers records the active producer count.
func RecordActiveProducers(n int) {
	ActiveProducers.Set(float64(n))
}

// RecordHTTPRequest records one API request.
func RecordHTTPRequest(route, status string) {
	HTTPRequestsTotal.WithLabelValues(route, status).Inc()
}
