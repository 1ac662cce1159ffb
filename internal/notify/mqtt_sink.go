package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/RedHatInsights/console-link/internal/mqtt"
	"github.com/RedHatInsights/console-link/internal/platform/logger"
	"github.com/RedHatInsights/console-link/internal/router"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

var ErrPublishTimeout = errors.New("timed out publishing to the mqtt broker")

const DefaultPublishTimeout = 2 * time.Second

// Publisher is the part of MQTT.Client the sink uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token
	Disconnect(quiesce uint)
}

// MqttSink publishes notifications and highlights for browser consoles subscribed to
// the channel's topics.  Unrouted frames are not published.
type MqttSink struct {
	client         Publisher
	topics         *mqtt.TopicBuilder
	qos            byte
	publishTimeout time.Duration
	now            func() time.Time
}

func NewMqttSink(client Publisher, topics *mqtt.TopicBuilder, qos byte, publishTimeout time.Duration) *MqttSink {
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}

	return &MqttSink{
		client:         client,
		topics:         topics,
		qos:            qos,
		publishTimeout: publishTimeout,
		now:            time.Now,
	}
}

func (s *MqttSink) Notify(ctx context.Context, n router.Notification) {
	topic, err := s.topics.BuildNotificationTopic(n.Channel)
	s.publish(topic, err, notificationRecord(n, s.now()))
}

func (s *MqttSink) Highlight(ctx context.Context, h router.Highlight) {
	topic, err := s.topics.BuildHighlightTopic(h.Channel)
	s.publish(topic, err, highlightRecord(h, s.now()))
}

func (s *MqttSink) Unrouted(ctx context.Context, u router.Unrouted) {
}

func (s *MqttSink) Close() error {
	s.client.Disconnect(250)
	return nil
}

func (s *MqttSink) publish(topic string, topicErr error, record Record) {
	log := logger.Log.WithFields(logrus.Fields{"channel": record.Channel, "kind": record.Kind, "topic": topic})

	err := topicErr
	if err == nil {
		err = s.send(topic, record)
	}

	if err != nil {
		log.WithFields(logrus.Fields{"error": err}).Error("Unable to publish record to the mqtt broker")
		metrics.failedCounter.WithLabelValues("mqtt", string(record.Kind)).Inc()
		return
	}

	metrics.deliveredCounter.WithLabelValues("mqtt", string(record.Kind)).Inc()
}

func (s *MqttSink) send(topic string, record Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	token := s.client.Publish(topic, s.qos, false, payload)
	if !token.WaitTimeout(s.publishTimeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}
