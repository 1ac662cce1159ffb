package mqtt

import (
	"crypto/tls"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	"github.com/RedHatInsights/console-link/internal/platform/logger"

	"github.com/sirupsen/logrus"
)

type MqttClientOptionsFunc func(*MQTT.ClientOptions) error

func WithTlsConfig(tlsConfig *tls.Config) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		logger.Log.Debug("Setting the MQTT TLS config")
		opts.SetTLSConfig(tlsConfig)
		return nil
	}
}

func WithClientID(clientID string) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		logger.Log.WithFields(logrus.Fields{"client_id": clientID}).Debug("Setting the MQTT client id")
		opts.SetClientID(clientID)
		return nil
	}
}

func WithCleanSession(cleanSession bool) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetCleanSession(cleanSession)
		return nil
	}
}

// WithAutoReconnect lets the paho client reconnect on its own, backing off up to
// maxInterval between tries.
func WithAutoReconnect(maxInterval time.Duration) MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetAutoReconnect(true)
		opts.SetMaxReconnectInterval(maxInterval)
		return nil
	}
}

func WithConnectionLostLogger() MqttClientOptionsFunc {
	return func(opts *MQTT.ClientOptions) error {
		opts.SetConnectionLostHandler(func(c MQTT.Client, err error) {
			classified := ClassifyConnectionLostError(err)
			logger.Log.WithFields(logrus.Fields{
				"error":    classified,
				"code":     classified.Code,
				"category": classified.Category,
			}).Warn("Lost the MQTT broker connection")
		})
		return nil
	}
}

func NewBrokerOptions(brokerUrl string, opts ...MqttClientOptionsFunc) (*MQTT.ClientOptions, error) {
	connOpts := MQTT.NewClientOptions()

	connOpts.AddBroker(brokerUrl)

	for _, opt := range opts {
		err := opt(connOpts)
		if err != nil {
			return nil, err
		}
	}

	return connOpts, nil
}
