// Package queue holds batch jobs waiting for a worker.
//
// The queue is an in-memory bounded channel. Enqueue never blocks; a full or
// closed queue rejects the job.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/immersivescaler/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Job names one avatar to process.
type Job struct {
	// Seq orders results; jobs finish in any order.
	Seq int
	// Name is the stored avatar to load.
	Name string
	// Out is the name to save under; empty overwrites Name.
	Out string
}

// Target returns the name the result is saved under.
func (j Job) Target() string {
	if j.Out != "" {
		return j.Out
	}
	return j.Name
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. It returns ErrFull or ErrClosed when the job was
	// not accepted.
	Enqueue(ctx context.Context, j Job) error

	// Dequeue returns a channel that receives jobs as they become available.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the number of waiting jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs. Jobs already queued are still delivered.
	Close() error

	// IsClosed reports whether Close was called.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)
	metrics.UpdateBatchQueueSize(0)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordBatchJob(metrics.BatchRejected)
		return fmt.Errorf("%w: %s", ErrClosed, j.Name)
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordBatchJob(metrics.BatchRejected)
		return err
	}

	select {
	case q.jobs <- j:
		metrics.UpdateBatchQueueSize(len(q.jobs))
		return nil
	default:
		metrics.RecordBatchJob(metrics.BatchRejected)
		return fmt.Errorf("%w: %s", ErrFull, j.Name)
	}
}

// Dequeue returns a channel that receives jobs as they become available.
// The forwarding goroutine exits when ctx is done, so consumers that stop
// reading must cancel it; a job held by the forwarder at that point is
// dropped.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			select {
			case out <- j:
				metrics.UpdateBatchQueueSize(len(q.jobs))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.jobs)
}

// Close stops accepting jobs. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
