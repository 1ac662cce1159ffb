package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	dialAttemptCounter        *prometheus.CounterVec
	dialFailureCounter        *prometheus.CounterVec
	connectionLostCounter     *prometheus.CounterVec
	reconnectScheduledCounter *prometheus.CounterVec
	reconnectExhaustedCounter *prometheus.CounterVec
	messageReceivedCounter    *prometheus.CounterVec
	openChannelGauge          prometheus.Gauge
}

func NewMetrics() *Metrics {
	metrics := new(Metrics)

	metrics.dialAttemptCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_link_realtime_dial_attempt_count",
		Help: "The number of realtime connection attempts",
	}, []string{"resource"})

	metrics.dialFailureCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_link_realtime_dial_failure_count",
		Help: "The number of failed realtime connection attempts per error category",
	}, []string{"resource", "category"})

	metrics.connectionLostCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_link_realtime_connection_lost_count",
		Help: "The number of established realtime connections that were lost",
	}, []string{"resource", "category"})

	metrics.reconnectScheduledCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_link_realtime_reconnect_scheduled_count",
		Help: "The number of reconnect attempts scheduled",
	}, []string{"resource"})

	metrics.reconnectExhaustedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_link_realtime_reconnect_exhausted_count",
		Help: "The number of channels that stopped reconnecting",
	}, []string{"resource"})

	metrics.messageReceivedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_link_realtime_message_received_count",
		Help: "The number of realtime frames received",
	}, []string{"resource"})

	metrics.openChannelGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "console_link_realtime_open_channels",
		Help: "The number of realtime channels currently open",
	})

	return metrics
}

var (
	metrics = NewMetrics()
)
