package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	chatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medgate",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat requests by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	fallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medgate",
			Subsystem: "chat",
			Name:      "fallback_total",
			Help:      "Noise-image fallback attempts by outcome",
		},
		[]string{"outcome"},
	)

	hallucinationStripsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "medgate",
			Subsystem: "chat",
			Name:      "hallucination_strips_total",
			Help:      "Replies whose hallucinated opening sentence was removed",
		},
	)

	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "medgate",
			Subsystem: "chat",
			Name:      "generation_duration_seconds",
			Help:      "Time spent in the generator per request, fallback included",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)

	queueWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "medgate",
			Subsystem: "chat",
			Name:      "queue_wait_seconds",
			Help:      "Time spent waiting for the generation slot",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(chatRequestsTotal, fallbackTotal, hallucinationStripsTotal, generationDuration, queueWaitSeconds)
}

// outcome labels
const (
	outcomeOK          = "ok"
	outcomeBadRequest  = "bad_request"
	outcomeDecodeError = "decode_error"
	outcomeBusy        = "busy"
	outcomeFatal       = "fatal"
	outcomeTimeout     = "timeout"
	outcomeCanceled    = "canceled"
	outcomeUnavailable = "unavailable"
	outcomeError       = "error"
)
