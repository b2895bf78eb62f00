// Package worker runs batch jobs on a pool of goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/okian/immersivescaler/internal/adapters/mq/queue"
	"github.com/okian/immersivescaler/pkg/logger"
	"github.com/okian/immersivescaler/pkg/metrics"
)

// Job is what workers read off the queue.
type Job = queue.Job

// Processor handles one job.
type Processor interface {
	Process(ctx context.Context, j Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, j Job) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, j Job) error { return f(ctx, j) }

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Outcome is the result of one job.
type Outcome struct {
	Job      Job
	Err      error
	Duration time.Duration
}

// Worker processes jobs until its queue is drained.
type Worker interface {
	// Run starts the worker loop until the queue closes or ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue  Queue
	proc   Processor
	name   string
	report func(Outcome)

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

var _ Worker = (*InMemoryWorker)(nil)

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, proc Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		proc:     proc,
		name:     "worker",
		report:   func(Outcome) {},
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	// The dequeue context ends with the loop so the queue's forwarder is
	// released even when ctx lives on.
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()
	jobs := w.queue.Dequeue(dctx)
	for {
		// Shutdown wins over a ready job.
		select {
		case <-w.shutdown:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.report(w.process(ctx, j))
		}
	}
}

// Shutdown stops the worker and waits for it to return.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, j Job) Outcome {
	metrics.AddBatchWorkersBusy(1)
	defer metrics.AddBatchWorkersBusy(-1)

	start := time.Now()
	err := w.proc.Process(ctx, j)
	out := Outcome{Job: j, Err: err, Duration: time.Since(start)}

	if err != nil {
		metrics.RecordBatchJob(metrics.BatchFailed)
		w.logger.Error(ctx, "job failed",
			logger.String("avatar", j.Name),
			logger.Error(err),
		)
		return out
	}
	metrics.RecordBatchJob(metrics.BatchSucceeded)
	w.logger.Debug(ctx, "job done",
		logger.String("avatar", j.Name),
		logger.String("target", j.Target()),
		logger.Float64("duration_ms", float64(out.Duration.Microseconds())/1000),
	)
	return out
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	mu       sync.Mutex
	outcomes []Outcome

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers; a count below one uses
// one worker per CPU.
func NewPool(workerCount int, q Queue, proc Processor) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(q, proc,
			WithName("worker-"+strconv.Itoa(i)),
			WithReporter(p.collect),
		)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

func (p *Pool) collect(o Outcome) {
	p.mu.Lock()
	p.outcomes = append(p.outcomes, o)
	p.mu.Unlock()
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Wait closes the queue, lets the workers drain it and returns every outcome
// in job order.
func (p *Pool) Wait(ctx context.Context) ([]Outcome, error) {
	p.closeQueue(ctx)

	for _, w := range p.workers {
		select {
		case <-w.Done():
		case <-ctx.Done():
			return p.results(), fmt.Errorf("wait for %s: %w", w.name, ctx.Err())
		}
	}
	return p.results(), nil
}

// Shutdown stops every worker after its current job. Queued jobs are dropped.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.closeQueue(ctx)

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (p *Pool) closeQueue(ctx context.Context) {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
}

func (p *Pool) results() []Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Outcome, len(p.outcomes))
	copy(out, p.outcomes)
	sort.Slice(out, func(i, j int) bool { return out[i].Job.Seq < out[j].Job.Seq })
	return out
}
