package notify

import (
	"context"

	"github.com/RedHatInsights/console-link/internal/platform/logger"
	"github.com/RedHatInsights/console-link/internal/router"

	"github.com/sirupsen/logrus"
)

type LogSink struct{}

func (LogSink) Notify(ctx context.Context, n router.Notification) {
	log := logger.Log.WithFields(logrus.Fields{
		"channel":     n.Channel,
		"type":        n.Type,
		"envelope_id": n.EnvelopeID,
		"duration":    n.Duration,
	})

	switch n.Level {
	case router.LevelError:
		log.Error(n.Message)
	case router.LevelWarning:
		log.Warn(n.Message)
	default:
		log.Info(n.Message)
	}

	metrics.deliveredCounter.WithLabelValues("log", string(NotificationRecord)).Inc()
}

func (LogSink) Highlight(ctx context.Context, h router.Highlight) {
	logger.Log.WithFields(logrus.Fields{
		"channel":     h.Channel,
		"highlight":   h.Kind,
		"target":      h.Target,
		"envelope_id": h.EnvelopeID,
		"duration":    h.Duration,
	}).Info("Highlight")

	metrics.deliveredCounter.WithLabelValues("log", string(HighlightRecord)).Inc()
}

func (LogSink) Unrouted(ctx context.Context, u router.Unrouted) {
	fields := logrus.Fields{"channel": u.Channel, "reason": u.Reason}
	if u.Envelope != nil {
		fields["type"] = u.Envelope.Type
		fields["envelope_id"] = u.Envelope.ID
	} else {
		fields["frame"] = string(u.Raw)
	}

	logger.Log.WithFields(fields).Warn("Unrouted realtime frame")

	metrics.deliveredCounter.WithLabelValues("log", string(UnroutedRecord)).Inc()
}
