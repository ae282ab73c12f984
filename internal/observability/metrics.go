package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "freight_matching"

var (
	CandidatesFound = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "candidates_found", Help: "Candidates produced by the last finder run"})
	FinderDuration  = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "finder_duration_seconds", Help: "Finder read+score latency seconds"})
	FinderFailures  = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "finder_failures_total", Help: "Finder calls that could not read the store"})

	CommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "commits_total", Help: "Commit attempts by outcome"},
		[]string{"outcome"},
	)
	PartyNotices = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "party_notices_total", Help: "Match notices pushed to drivers and shippers"},
		[]string{"channel", "result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
