package kiosk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTurns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kiosk_turns_total",
		Help: "Total completed conversation turns",
	})

	metricTurnLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kiosk_turn_latency_ms",
		Help:    "Latency from final transcript to end of spoken reply (ms)",
		Buckets: prometheus.ExponentialBuckets(100, 1.6, 12),
	})

	metricSilenceRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kiosk_silence_retries_total",
		Help: "Total silence fallback prompts spoken",
	})

	metricSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_sessions_total",
		Help: "Conversation sessions by end reason",
	}, []string{"reason"})

	metricPaymentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_payment_outcomes_total",
		Help: "Checkout terminal outcomes",
	}, []string{"outcome"})

	metricStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_state_transitions_total",
		Help: "Turn state transitions",
	}, []string{"from", "to"})

	metricOrderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kiosk_order_failures_total",
		Help: "Order save or payment initiation failures",
	})
)
