// Package queue provides the bounded in-process job queue shared by the
// HTTP intake layer, the trigger and the worker itself.
package queue

import (
	"context"
	"sync"

	"github.com/numbleroot/autotube/internal/domain"
)

// Queue is a bounded FIFO channel of jobs with multiple producers and a
// single consumer (the worker dispatcher). Producers block when the buffer
// is full; jobs are never dropped under back-pressure.
type Queue struct {
	jobs      chan domain.Job
	closeOnce sync.Once
}

// New returns a queue with the given buffer capacity.
func New(capacity int) *Queue {
	return &Queue{jobs: make(chan domain.Job, capacity)}
}

// Submit places a job on the queue, blocking while the buffer is full.
// It returns the context error if ctx is cancelled before the job is
// accepted.
func (q *Queue) Submit(ctx context.Context, job domain.Job) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs exposes the receive side. Only the worker dispatcher reads from it;
// the channel is closed by Close once all producers have stopped.
func (q *Queue) Jobs() <-chan domain.Job {
	return q.jobs
}

// Close closes the queue. Callers must guarantee no further Submit calls;
// it is the final step of shutdown, after all producers have unwound.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.jobs) })
}
