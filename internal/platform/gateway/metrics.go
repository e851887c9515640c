package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sivia_gateway_requests_total",
			Help: "Model gateway completions by model and outcome.",
		},
		[]string{"model", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sivia_gateway_request_duration_seconds",
			Help:    "Model gateway completion latency.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		},
		[]string{"model"},
	)

	tokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sivia_gateway_tokens_total",
			Help: "Tokens reported by the gateway, by model and kind.",
		},
		[]string{"model", "kind"},
	)
)
