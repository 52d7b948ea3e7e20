// Package workqueue implements the bounded asynchronous queue that feeds
// matching-cycle requests to the Matching Loop: a Redis list capped at a
// fixed depth, skipping new work rather than blocking the producer when
// full, with an AMQP overflow publisher for requests that would otherwise
// be dropped and need to survive a restart.
package workqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrFull is returned by Enqueue when the bounded queue is at capacity.
// Callers are expected to treat this as "skip, don't block" (spec design
// note 9), not as a fatal error.
var ErrFull = errors.New("workqueue: queue is full")

const key = "dispatch:matching:queue"

// Job is one unit of queued work: a request to run one matching cycle over
// every pending order and available driver.
type Job struct {
	SessionID  string    `json:"session_id"`
	Reason     string    `json:"reason"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is a depth-bounded FIFO backed by a Redis list.
type Queue struct {
	client   *redis.Client
	maxDepth int64
	overflow *OverflowPublisher
}

// New builds a Queue. overflow may be nil, in which case a full queue
// simply rejects new jobs with ErrFull.
func New(client *redis.Client, maxDepth int64, overflow *OverflowPublisher) *Queue {
	if maxDepth <= 0 {
		maxDepth = 100
	}
	return &Queue{client: client, maxDepth: maxDepth, overflow: overflow}
}

// Enqueue pushes a job unless the queue is already at maxDepth, in which
// case it is handed to the overflow publisher (if configured) instead of
// blocking the caller.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	depth, err := q.client.LLen(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("workqueue: check depth: %w", err)
	}
	if depth >= q.maxDepth {
		if q.overflow != nil {
			return q.overflow.Publish(ctx, job)
		}
		return ErrFull
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("workqueue: marshal job: %w", err)
	}
	return q.client.RPush(ctx, key, data).Err()
}

// Dequeue blocks up to timeout for the next job, returning (nil, nil) on
// timeout rather than an error — an empty queue is the steady state, not
// a failure.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("workqueue: dequeue: %w", err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("workqueue: unexpected BLPOP reply shape")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("workqueue: unmarshal job: %w", err)
	}
	return &job, nil
}

// Depth reports the current queue length.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, key).Result()
}
