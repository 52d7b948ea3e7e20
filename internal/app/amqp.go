package app

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"dispatch/internal/config"
)

// NewAMQPConnection dials the broker backing the bounded work queue's
// overflow publisher.
func NewAMQPConnection(cfg config.AMQPConfig) (*amqp.Connection, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("app: dial amqp: %w", err)
	}
	return conn, nil
}
