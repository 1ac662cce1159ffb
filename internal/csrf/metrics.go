package csrf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	acquisitionAttemptCounter prometheus.Counter
	acquisitionResultCounter  *prometheus.CounterVec
	acquisitionDuration       prometheus.Histogram
	guardedRequestCounter     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	metrics := new(Metrics)

	metrics.acquisitionAttemptCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "console_link_csrf_acquisition_attempt_count",
		Help: "The number of token bootstrap calls issued",
	})

	metrics.acquisitionResultCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_link_csrf_acquisition_result_count",
		Help: "The number of completed acquisition chains per result",
	}, []string{"result"})

	metrics.acquisitionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "console_link_csrf_acquisition_duration_seconds",
		Help: "Time taken by an acquisition chain, retries included",
	})

	metrics.guardedRequestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_link_csrf_guarded_request_count",
		Help: "The number of mutating requests seen by the request guard",
	}, []string{"method", "token_attached"})

	return metrics
}

var (
	metrics = NewMetrics()
)
