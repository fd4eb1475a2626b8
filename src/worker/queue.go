// Package worker runs fire-and-forget jobs on a bounded queue drained by a
// fixed pool of goroutines.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"spendwise-server/src/logging"

	"go.uber.org/zap"
)

var (
	ErrQueueFull    = errors.New("worker queue full")
	ErrQueueClosed  = errors.New("worker queue closed")
	ErrFlushTimeout = errors.New("worker queue flush timeout")
)

// Job is one unit of background work. The context carries the per-job
// timeout.
type Job func(ctx context.Context) error

// Observer receives queue signals, typically the Prometheus collectors.
type Observer interface {
	EvaluationDropped()
	SetQueueDepth(n int)
}

type noopObserver struct{}

func (noopObserver) EvaluationDropped() {}
func (noopObserver) SetQueueDepth(int)  {}

type Config struct {
	// QueueSize is the bounded queue size (default: 1000)
	QueueSize int
	// Workers is the number of concurrent workers (default: 2)
	Workers int
	// MaxWaitTime is how long Submit waits on a full queue before dropping
	// the job (default: 10ms)
	MaxWaitTime time.Duration
	// JobTimeout bounds each job's context (default: 10s)
	JobTimeout time.Duration
}

type Queue struct {
	name     string
	jobs     chan Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	config   Config
	observer Observer
	logger   *logging.Logger

	// mu is held for reading by Submit and for writing by Close, so no job
	// can be enqueued once the workers may have exited.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	// accessed atomically
	pending   int64
	submitted int64
	dropped   int64
	failed    int64
}

type Stats struct {
	QueueDepth int   `json:"queue_depth"`
	Pending    int64 `json:"pending"`
	Submitted  int64 `json:"submitted"`
	Dropped    int64 `json:"dropped"`
	Failed     int64 `json:"failed"`
}

// New starts the worker pool. Close must be called to stop it.
func New(name string, config Config, observer Observer) *Queue {
	if config.QueueSize <= 0 {
		config.QueueSize = 1000
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.MaxWaitTime == 0 {
		config.MaxWaitTime = 10 * time.Millisecond
	}
	if config.JobTimeout == 0 {
		config.JobTimeout = 10 * time.Second
	}
	if observer == nil {
		observer = noopObserver{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		name:     name,
		jobs:     make(chan Job, config.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		config:   config,
		observer: observer,
		logger:   logging.L().Named("worker").With(zap.String("queue", name)),
	}
	for i := 0; i < config.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Submit enqueues job. When the queue is full it waits up to MaxWaitTime and
// then drops the job with ErrQueueFull.
func (q *Queue) Submit(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.drop("closed")
		return ErrQueueClosed
	}

	timer := time.NewTimer(q.config.MaxWaitTime)
	defer timer.Stop()

	atomic.AddInt64(&q.pending, 1)
	select {
	case q.jobs <- job:
		atomic.AddInt64(&q.submitted, 1)
		q.observer.SetQueueDepth(len(q.jobs))
		return nil
	case <-timer.C:
		atomic.AddInt64(&q.pending, -1)
		q.drop("full")
		return ErrQueueFull
	case <-ctx.Done():
		atomic.AddInt64(&q.pending, -1)
		return ctx.Err()
	}
}

func (q *Queue) drop(reason string) {
	atomic.AddInt64(&q.dropped, 1)
	q.observer.EvaluationDropped()
	q.logger.Warn("job dropped", zap.String("reason", reason), zap.Int("queue_depth", len(q.jobs)))
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case job := <-q.jobs:
			q.run(job)
		case <-q.ctx.Done():
			// Drain what is already queued before exiting.
			for {
				select {
				case job := <-q.jobs:
					q.run(job)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) run(job Job) {
	defer atomic.AddInt64(&q.pending, -1)
	defer q.observer.SetQueueDepth(len(q.jobs))
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&q.failed, 1)
			q.logger.Error("job panicked", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), q.config.JobTimeout)
	defer cancel()
	if err := job(ctx); err != nil {
		atomic.AddInt64(&q.failed, 1)
		q.logger.Error("job failed", zap.Error(err))
	}
}

// Flush waits until every submitted job has finished or timeout passes.
func (q *Queue) Flush(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for atomic.LoadInt64(&q.pending) > 0 {
		if time.Now().After(deadline) {
			return ErrFlushTimeout
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil
}

// Close stops accepting jobs, runs the ones already queued and waits for the
// workers to exit.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		q.cancel()
		q.wg.Wait()
	})
	return nil
}

func (q *Queue) Stats() Stats {
	return Stats{
		QueueDepth: len(q.jobs),
		Pending:    atomic.LoadInt64(&q.pending),
		Submitted:  atomic.LoadInt64(&q.submitted),
		Dropped:    atomic.LoadInt64(&q.dropped),
		Failed:     atomic.LoadInt64(&q.failed),
	}
}
