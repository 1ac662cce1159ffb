package queue

import (
	"strings"
	"time"
)

type ProducerConfig struct {
	Brokers      []string
	SaslConfig   *SaslConfig
	Topic        string
	BatchSize    int
	BatchBytes   int
	BatchTimeout time.Duration
	Balancer     string
}

func (c ProducerConfig) String() string {
	return "brokers=" + strings.Join(c.Brokers, ",") + " topic=" + c.Topic + " balancer=" + c.Balancer
}

type SaslConfig struct {
	SaslMechanism string
	SaslUsername  string
	SaslPassword  string
	KafkaCA       string
}
