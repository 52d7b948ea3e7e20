package workqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// OverflowPublisher hands jobs the bounded Redis queue rejected to a
// durable AMQP queue, so a burst of order traffic is replayed rather than
// lost once the matching loop catches up.
type OverflowPublisher struct {
	channel   *amqp.Channel
	queueName string
}

// NewOverflowPublisher declares the durable overflow queue and returns a
// publisher bound to it.
func NewOverflowPublisher(conn *amqp.Connection, queueName string) (*OverflowPublisher, error) {
	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("workqueue: open channel: %w", err)
	}
	if _, err := channel.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		channel.Close()
		return nil, fmt.Errorf("workqueue: declare overflow queue: %w", err)
	}
	return &OverflowPublisher{channel: channel, queueName: queueName}, nil
}

// Publish sends one job to the overflow queue, retrying a handful of
// times against transient broker hiccups before giving up.
func (p *OverflowPublisher) Publish(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("workqueue: marshal overflow job: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
		DeliveryMode: amqp.Persistent,
	}

	const attempts = 3
	var publishErr error
	for i := 0; i < attempts; i++ {
		publishErr = p.channel.PublishWithContext(ctx, "", p.queueName, false, false, msg)
		if publishErr == nil {
			return nil
		}
		log.Printf("workqueue: overflow publish attempt %d failed: %v", i+1, publishErr)
		time.Sleep(time.Duration(i+1) * 200 * time.Millisecond)
	}
	return fmt.Errorf("workqueue: overflow publish: %w", publishErr)
}

// Replay drains the overflow queue back into the bounded Redis queue once
// the matching loop has capacity again, acking each message only after a
// successful re-enqueue so a crash mid-replay does not lose jobs.
func (p *OverflowPublisher) Replay(ctx context.Context, into *Queue, max int) (int, error) {
	msgs, err := p.channel.Consume(p.queueName, "", false, false, false, false, nil)
	if err != nil {
		return 0, fmt.Errorf("workqueue: consume overflow: %w", err)
	}

	replayed := 0
	for replayed < max {
		select {
		case d, ok := <-msgs:
			if !ok {
				return replayed, nil
			}
			var job Job
			if err := json.Unmarshal(d.Body, &job); err != nil {
				d.Nack(false, false)
				continue
			}
			if err := into.Enqueue(ctx, job); err != nil {
				d.Nack(false, true)
				return replayed, err
			}
			d.Ack(false)
			replayed++
		case <-ctx.Done():
			return replayed, ctx.Err()
		default:
			return replayed, nil
		}
	}
	return replayed, nil
}

// Close closes the underlying AMQP channel.
func (p *OverflowPublisher) Close() error {
	return p.channel.Close()
}
