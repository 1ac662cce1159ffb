package queue

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

const dialTimeout = 10 * time.Second

func saslMechanism(cfg *SaslConfig) (sasl.Mechanism, error) {
	switch strings.ToLower(cfg.SaslMechanism) {
	case "plain":
		return plain.Mechanism{
			Username: cfg.SaslUsername,
			Password: cfg.SaslPassword,
		}, nil
	case "scram-sha-512":
		return scram.Mechanism(scram.SHA512, cfg.SaslUsername, cfg.SaslPassword)
	case "scram-sha-256":
		return scram.Mechanism(scram.SHA256, cfg.SaslUsername, cfg.SaslPassword)
	}
	return nil, fmt.Errorf("unsupported sasl mechanism %q", cfg.SaslMechanism)
}

func saslDialer(cfg *SaslConfig) (*kafka.Dialer, error) {
	mechanism, err := saslMechanism(cfg)
	if err != nil {
		return nil, err
	}

	dialer := &kafka.Dialer{
		Timeout:       dialTimeout,
		DualStack:     true,
		SASLMechanism: mechanism,
	}

	if cfg.KafkaCA != "" {
		caCert, err := os.ReadFile(cfg.KafkaCA)
		if err != nil {
			return nil, fmt.Errorf("unable to read kafka ca cert: %w", err)
		}

		caCertPool := x509.NewCertPool()
		caCertPool.AppendCertsFromPEM(caCert)

		dialer.TLS = &tls.Config{
			RootCAs: caCertPool,
		}
	}

	return dialer, nil
}
