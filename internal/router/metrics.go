package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	messageRoutedCounter     *prometheus.CounterVec
	unroutedMessageCounter   *prometheus.CounterVec
	notificationCounter      *prometheus.CounterVec
	highlightCounter         *prometheus.CounterVec
	subscriberDroppedCounter prometheus.Counter
}

func NewMetrics() *Metrics {
	metrics := new(Metrics)

	metrics.messageRoutedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_link_router_message_routed_count",
		Help: "The number of realtime messages routed per message type",
	}, []string{"type"})

	metrics.unroutedMessageCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_link_router_unrouted_message_count",
		Help: "The number of realtime frames handed to the default sink",
	}, []string{"reason"})

	metrics.notificationCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_link_router_notification_count",
		Help: "The number of notifications dispatched per message type",
	}, []string{"type"})

	metrics.highlightCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_link_router_highlight_count",
		Help: "The number of highlights dispatched per highlight kind",
	}, []string{"kind"})

	metrics.subscriberDroppedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "console_link_router_subscriber_dropped_count",
		Help: "The number of envelopes dropped because a subscriber was not keeping up",
	})

	return metrics
}

var (
	metrics = NewMetrics()
)
