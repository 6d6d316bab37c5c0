package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DailySelections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daily_selections_total",
			Help: "Daily challenge lookups by outcome (cache_hit, picked, exhausted, error)",
		},
		[]string{"result"},
	)
	ChallengeAccepts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_accepts_total",
			Help: "Accept attempts by outcome",
		},
		[]string{"result"},
	)
	ChallengeCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_completions_total",
			Help: "Complete attempts by outcome",
		},
		[]string{"result"},
	)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of admin HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of admin HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	AuthRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_rejections_total",
			Help: "Rejected sign-ins and unauthorized admin calls",
		},
		[]string{"reason"},
	)
)

var registerOnce sync.Once

// Register adds all collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			DailySelections,
			ChallengeAccepts,
			ChallengeCompletions,
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AuthRejections,
		)
	})
}
