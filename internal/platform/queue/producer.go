package queue

import (
	"github.com/RedHatInsights/console-link/internal/platform/logger"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

func StartProducer(cfg *ProducerConfig) (*kafka.Writer, error) {
	logger.Log.WithFields(logrus.Fields{"config": cfg.String()}).Info("Starting a new Kafka producer")

	writerConfig := kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   cfg.BatchBytes,
		BatchTimeout: cfg.BatchTimeout,
	}

	if cfg.SaslConfig != nil && cfg.SaslConfig.SaslUsername != "" {
		kafkaDialer, err := saslDialer(cfg.SaslConfig)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"error": err}).Error("Failed to create a new Kafka dialer")
			return nil, err
		}
		writerConfig.Dialer = kafkaDialer
	}

	if cfg.Balancer == "hash" {
		writerConfig.Balancer = &kafka.Hash{}
	}

	w := kafka.NewWriter(writerConfig)

	logger.Log.Info("Producing messages to topic: ", cfg.Topic)

	return w, nil
}
