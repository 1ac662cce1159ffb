package main

import (
	"errors"

	"github.com/RedHatInsights/console-link/internal/config"
	"github.com/RedHatInsights/console-link/internal/mqtt"
	"github.com/RedHatInsights/console-link/internal/notify"
	"github.com/RedHatInsights/console-link/internal/platform/logger"
	"github.com/RedHatInsights/console-link/internal/platform/queue"
	"github.com/RedHatInsights/console-link/internal/platform/utils"
	"github.com/RedHatInsights/console-link/internal/platform/utils/tls_utils"

	"github.com/sirupsen/logrus"
)

func buildNotificationSinks(cfg *config.Config) (notify.Fanout, error) {
	var fanout notify.Fanout

	for _, name := range cfg.NotificationSinks {
		switch name {
		case "log":
			fanout = append(fanout, notify.LogSink{})

		case "kafka":
			writer, err := queue.StartProducer(&queue.ProducerConfig{
				Brokers:      cfg.KafkaBrokers,
				Topic:        cfg.KafkaNotificationsTopic,
				BatchSize:    cfg.KafkaNotificationsBatchSize,
				BatchBytes:   cfg.KafkaNotificationsBatchBytes,
				BatchTimeout: cfg.KafkaNotificationsBatchTimeout,
				Balancer:     "hash",
				SaslConfig: &queue.SaslConfig{
					SaslMechanism: cfg.KafkaSASLMechanism,
					SaslUsername:  cfg.KafkaUsername,
					SaslPassword:  cfg.KafkaPassword,
					KafkaCA:       cfg.KafkaCA,
				},
			})
			if err != nil {
				fanout.Close()
				return nil, err
			}
			fanout = append(fanout, notify.NewQueuedSink(name, notify.NewKafkaSink(writer), cfg.NotificationQueueSize))

		case "mqtt":
			brokerOptions, err := buildMqttBrokerOptions(cfg)
			if err != nil {
				fanout.Close()
				return nil, err
			}

			client, err := mqtt.CreateBrokerConnection(cfg.MqttBrokerAddress, brokerOptions...)
			if err != nil {
				fanout.Close()
				return nil, err
			}
			mqttSink := notify.NewMqttSink(client, mqtt.NewTopicBuilder(cfg.MqttTopicPrefix), cfg.MqttPublishQoS, cfg.MqttPublishTimeout)
			fanout = append(fanout, notify.NewQueuedSink(name, mqttSink, cfg.NotificationQueueSize))
		}

		logger.Log.WithFields(logrus.Fields{"sink": name}).Info("Notification sink enabled")
	}

	return fanout, nil
}

func buildMqttBrokerTlsConfigFuncList(cfg *config.Config) ([]tls_utils.TlsConfigFunc, error) {
	if (cfg.MqttBrokerTlsCertFile == "") != (cfg.MqttBrokerTlsKeyFile == "") {
		return nil, errors.New("Cert or key file specified without the other")
	}

	return tls_utils.FromFiles(cfg.MqttBrokerTlsCACertFile, cfg.MqttBrokerTlsCertFile, cfg.MqttBrokerTlsKeyFile, cfg.MqttBrokerTlsSkipVerify), nil
}

func buildMqttBrokerOptions(cfg *config.Config) ([]mqtt.MqttClientOptionsFunc, error) {
	tlsConfigFuncs, err := buildMqttBrokerTlsConfigFuncList(cfg)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := tls_utils.NewTlsConfig(tlsConfigFuncs...)
	if err != nil {
		return nil, err
	}

	return []mqtt.MqttClientOptionsFunc{
		mqtt.WithTlsConfig(tlsConfig),
		mqtt.WithClientID(cfg.MqttClientId + "-" + utils.GetHostname("local")),
		mqtt.WithCleanSession(true),
		mqtt.WithAutoReconnect(cfg.MqttReconnectMaxInterval),
		mqtt.WithConnectionLostLogger(),
	}, nil
}
