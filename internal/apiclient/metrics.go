package apiclient

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"support-portal/internal/model"
	"support-portal/pkg/apierror"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_api_requests_total",
			Help: "Remote support API calls by route and outcome.",
		},
		[]string{"route", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_api_request_duration_seconds",
			Help:    "Latency of remote support API calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "portal_api_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"name"},
	)
)

func observe(route string, err error, elapsed time.Duration) {
	requestsTotal.WithLabelValues(route, outcome(err)).Inc()
	requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}

	var apiErr *apierror.APIError
	switch {
	case errors.Is(err, model.ErrNetwork):
		return "network_error"
	case errors.As(err, &apiErr) && apiErr.Rejected():
		return "rejected"
	default:
		return "error"
	}
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
