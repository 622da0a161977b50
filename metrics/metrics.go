// Package metrics exposes Prometheus metrics for remote capability calls and chat sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"handyfix/services/apperror"
)

// Capability labels.
const (
	CapabilityText           = "text_completion"
	CapabilityVision         = "vision"
	CapabilitySpeech         = "speech"
	CapabilityRecommendation = "recommendation"
)

var (
	RemoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handyfix_remote_calls_total",
			Help: "Total number of remote capability calls by outcome",
		},
		[]string{"capability", "outcome"},
	)

	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "handyfix_remote_call_duration_seconds",
			Help:    "Duration of remote capability calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"capability"},
	)

	RecommendationCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "handyfix_recommendation_cache_total",
			Help: "Recommendation cache lookups by result",
		},
		[]string{"result"},
	)

	FallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "handyfix_search_fallbacks_total",
			Help: "Worker searches that degraded to plain keyword search",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "handyfix_chat_sessions_active",
			Help: "Number of live chat sessions",
		},
	)
)

// ObserveRemoteCall records one call; outcome is "success" or the error kind.
func ObserveRemoteCall(capability string, start time.Time, err error) {
	RemoteCallDuration.WithLabelValues(capability).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = string(apperror.KindOf(err))
	}
	RemoteCallsTotal.WithLabelValues(capability, outcome).Inc()
}
