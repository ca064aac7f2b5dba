package inference

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	modelCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inference_model_calls_total",
			Help: "Remote model calls by model and outcome.",
		},
		[]string{"model", "outcome"},
	)

	// Model calls are slow compared to HTTP handlers; buckets go up to a minute.
	modelLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inference_model_call_duration_seconds",
			Help:    "Duration of remote model calls in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"model"},
	)
)

func init() {
	prometheus.MustRegister(modelCalls, modelLat)
}

func observeCall(model, outcome string, d time.Duration) {
	modelCalls.WithLabelValues(model, outcome).Inc()
	modelLat.WithLabelValues(model).Observe(d.Seconds())
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrAuth):
		return "auth"
	default:
		return "error"
	}
}
