package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	deliveredCounter *prometheus.CounterVec
	failedCounter    *prometheus.CounterVec
	droppedCounter   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	metrics := new(Metrics)

	metrics.deliveredCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_link_notify_delivered_count",
		Help: "The number of records delivered per sink and record kind",
	}, []string{"sink", "kind"})

	metrics.failedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_link_notify_failed_count",
		Help: "The number of records a sink failed to deliver",
	}, []string{"sink", "kind"})

	metrics.droppedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_link_notify_dropped_count",
		Help: "The number of records dropped because a sink's queue was full or closed",
	}, []string{"sink", "kind"})

	return metrics
}

var (
	metrics = NewMetrics()
)
