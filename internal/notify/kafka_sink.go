package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RedHatInsights/console-link/internal/platform/logger"
	"github.com/RedHatInsights/console-link/internal/router"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const kindHeader = "kind"

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes one JSON record per notification, highlight or unrouted frame,
// keyed by channel so a channel's records stay in order on one partition.
type KafkaSink struct {
	writer MessageWriter
	now    func() time.Time
}

func NewKafkaSink(writer MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer, now: time.Now}
}

func (s *KafkaSink) Notify(ctx context.Context, n router.Notification) {
	s.write(ctx, notificationRecord(n, s.now()))
}

func (s *KafkaSink) Highlight(ctx context.Context, h router.Highlight) {
	s.write(ctx, highlightRecord(h, s.now()))
}

func (s *KafkaSink) Unrouted(ctx context.Context, u router.Unrouted) {
	s.write(ctx, unroutedRecord(u, s.now()))
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func (s *KafkaSink) write(ctx context.Context, record Record) {
	log := logger.Log.WithFields(logrus.Fields{"channel": record.Channel, "kind": record.Kind})

	value, err := json.Marshal(record)
	if err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("Unable to marshal record")
		metrics.failedCounter.WithLabelValues("kafka", string(record.Kind)).Inc()
		return
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(record.Channel),
		Value:   value,
		Headers: []kafka.Header{{Key: kindHeader, Value: []byte(record.Kind)}},
	})
	if err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("Unable to write record to kafka")
		metrics.failedCounter.WithLabelValues("kafka", string(record.Kind)).Inc()
		return
	}

	metrics.deliveredCounter.WithLabelValues("kafka", string(record.Kind)).Inc()
}
