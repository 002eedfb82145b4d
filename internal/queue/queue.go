package queue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mirrormatch/cloudsync/internal/platform/logger"
)

var tracer = otel.Tracer("mirrormatch/queue")

// Config tunes the queue's retry and pacing behavior. Tests shrink the
// delays; production uses the defaults.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	PaceMin     time.Duration
	PaceMax     time.Duration
	Buffer      int
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   150 * time.Millisecond,
		PaceMin:     75 * time.Millisecond,
		PaceMax:     200 * time.Millisecond,
		Buffer:      64,
	}
}

type task struct {
	ctx  context.Context
	name string
	fn   func(ctx context.Context) error
	done chan error
}

// Queue is the single serialization point for remote writes. Tasks execute
// one at a time in submission order on one consumer goroutine; each task
// retries transient failures with exponential backoff, and the queue pauses
// between tasks to stay under remote rate limits.
//
// Construct one Queue per account/session context and pass it explicitly to
// the store facade.
type Queue struct {
	log   *logger.Logger
	cfg   Config
	tasks chan *task

	mu     sync.Mutex
	closed bool
	idle   chan struct{}
}

func New(baseLog *logger.Logger, cfg Config) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	q := &Queue{
		log:   baseLog.With("component", "WriteQueue"),
		cfg:   cfg,
		tasks: make(chan *task, cfg.Buffer),
		idle:  make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue submits a mutation and blocks until it has executed (including
// retries). Concurrent callers are serialized in submission order. The
// returned error is the task's final error; one task's failure never affects
// subsequent tasks.
func (q *Queue) Enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return <-q.EnqueueAsync(ctx, name, fn)
}

// EnqueueAsync submits a mutation and returns a channel that receives its
// final result.
func (q *Queue) EnqueueAsync(ctx context.Context, name string, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	if fn == nil {
		done <- fmt.Errorf("enqueue %s: nil task", name)
		return done
	}
	t := &task{ctx: ctx, name: name, fn: fn, done: done}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		done <- fmt.Errorf("enqueue %s: queue closed", name)
		return done
	}
	q.tasks <- t
	q.mu.Unlock()

	return done
}

// Close stops accepting tasks, drains what was already queued, and waits for
// the consumer to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	<-q.idle
}

func (q *Queue) run() {
	defer close(q.idle)
	for t := range q.tasks {
		err := q.attempt(t)
		if err != nil {
			q.log.Warn("task failed", "task", t.name, "error", err)
		}
		t.done <- err
		q.pace()
	}
}

func (q *Queue) attempt(t *task) error {
	ctx, span := tracer.Start(t.ctx, "write_queue.task",
		trace.WithAttributes(attribute.String("task", t.name)))
	defer span.End()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.cfg.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.5

	op := func() (struct{}, error) {
		err := t.fn(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if Classify(err) == DecisionFatal {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(q.cfg.MaxAttempts)),
	)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (q *Queue) pace() {
	if q.cfg.PaceMax <= 0 {
		return
	}
	d := q.cfg.PaceMin
	if spread := q.cfg.PaceMax - q.cfg.PaceMin; spread > 0 {
		d += time.Duration(rand.Int63n(int64(spread)))
	}
	time.Sleep(d)
}
