// Package queue provides a generic in-process job queue with bounded
// worker concurrency and exponential-backoff retry. The engine uses it for
// fire-and-forget work (event fan-out, enrichment); step transitions never
// go through it because the engine must know their outcome inline.
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/pressflow/pressflow/pkg/observability"
)

// JobType routes a job to its registered handler
type JobType string

// Job is one unit of background work
type Job struct {
	Type    JobType
	Payload json.RawMessage
	Policy  RetryPolicy
}

// RetryPolicy bounds retry behavior for a job
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryPolicy returns the retry policy used when none is supplied
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
}

// Handler processes one job payload
type Handler func(ctx context.Context, payload json.RawMessage) error

// ErrQueueClosed is returned when enqueueing after Close
var ErrQueueClosed = errors.New("queue closed")

// ErrUnknownJobType is returned when no handler is registered for a type
var ErrUnknownJobType = errors.New("no handler registered for job type")

// Queue is a bounded-concurrency background job queue
type Queue struct {
	// jobs is never closed; quit signals shutdown instead, so an Enqueue
	// blocked on a full buffer cannot send on a closed channel.
	jobs     chan Job
	quit     chan struct{}
	handlers map[JobType]Handler
	logger   observability.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a queue with the given worker count and buffer size and
// starts its workers.
func New(workers, buffer int, logger observability.Logger) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		jobs:     make(chan Job, buffer),
		quit:     make(chan struct{}),
		handlers: make(map[JobType]Handler),
		logger:   logger,
		cancel:   cancel,
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}

	return q
}

// Register binds a handler to a job type. Call before enqueueing jobs of
// that type; handlers registered later only affect future jobs.
func (q *Queue) Register(jobType JobType, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Enqueue submits a job. Blocks when the buffer is full until a worker
// frees capacity or ctx is done.
func (q *Queue) Enqueue(ctx context.Context, jobType JobType, payload json.RawMessage, policy RetryPolicy) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if _, ok := q.handlers[jobType]; !ok {
		q.mu.Unlock()
		return errors.Wrapf(ErrUnknownJobType, "type %q", jobType)
	}
	q.mu.Unlock()

	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy()
	}

	select {
	case q.jobs <- Job{Type: jobType, Payload: payload, Policy: policy}:
		return nil
	case <-q.quit:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs, drains buffered work, and waits for workers
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.quit)
	q.wg.Wait()
	q.cancel()
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case job := <-q.jobs:
			q.process(ctx, job)
		case <-q.quit:
			// Finish whatever was buffered before shutdown
			for {
				select {
				case job := <-q.jobs:
					q.process(ctx, job)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) process(ctx context.Context, job Job) {
	q.mu.Lock()
	handler := q.handlers[job.Type]
	q.mu.Unlock()
	if handler == nil {
		q.logger.Error("Dropping job with no handler", map[string]interface{}{"type": job.Type})
		return
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = job.Policy.InitialInterval
	b.MaxInterval = job.Policy.MaxInterval
	b.Multiplier = job.Policy.Multiplier
	b.MaxElapsedTime = 0

	maxAttempts := job.Policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	// WithMaxRetries counts retries, not attempts
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		return handler(ctx, job.Payload)
	}

	if err := backoff.Retry(operation, policy); err != nil {
		q.logger.Error("Job failed after retries", map[string]interface{}{
			"type":     job.Type,
			"attempts": attempt,
			"error":    err.Error(),
		})
		return
	}

	if attempt > 1 {
		q.logger.Info("Job succeeded after retry", map[string]interface{}{
			"type":     job.Type,
			"attempts": attempt,
		})
	}
}
