package handler

import (
	"context"

	"dispatch/internal/workqueue"
)

// jobQueue is the subset of workqueue.Queue the handlers need, narrowed so
// tests can fake it without a real Redis client.
type jobQueue interface {
	Enqueue(ctx context.Context, job workqueue.Job) error
}
