package app

import (
	"strings"

	"github.com/segmentio/kafka-go"

	"dispatch/internal/config"
)

// NewKafkaWriter builds the producer used to fan out offer lifecycle
// events (spec 4.7/7). Callers check cfg.Enabled before using this, since
// a disabled Kafka sink runs the offer Service with a nil writer
// (best-effort fan-out, never required for correctness).
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}
