package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rafaeljc/herald/internal/observability"
)

// Task is one unit of delayed work. attempt starts at 1. Returning true asks
// the queue to run the task again after the redelivery delay.
type Task func(ctx context.Context, attempt int) (retry bool)

// QueueConfig sizes a DelayQueue.
type QueueConfig struct {
	Workers         int
	MaxAttempts     int
	RedeliveryDelay time.Duration
	TaskTimeout     time.Duration
}

type job struct {
	task    Task
	attempt int
}

// DelayQueue runs tasks after a delay on a fixed pool of workers. Submitters
// never wait for a task, and a task never outlives Close unless it already
// started.
type DelayQueue struct {
	cfg    QueueConfig
	logger *slog.Logger

	jobs chan job
	done chan struct{}

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool

	workers sync.WaitGroup
}

// NewDelayQueue starts the worker pool.
func NewDelayQueue(cfg QueueConfig, logger *slog.Logger) *DelayQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RedeliveryDelay <= 0 {
		cfg.RedeliveryDelay = time.Second
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 10 * time.Second
	}

	q := &DelayQueue{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "delay_queue")),
		jobs:   make(chan job),
		done:   make(chan struct{}),
		timers: make(map[*time.Timer]struct{}),
	}

	for range cfg.Workers {
		q.workers.Add(1)
		go q.work()
	}

	return q
}

// Submit schedules task to run once delay elapses. It reports false when the
// queue is already closed.
func (q *DelayQueue) Submit(delay time.Duration, task Task) bool {
	return q.schedule(delay, job{task: task, attempt: 1})
}

func (q *DelayQueue) schedule(delay time.Duration, j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		if _, ok := q.timers[timer]; !ok {
			// Close stopped us after the timer had already fired.
			q.mu.Unlock()
			return
		}
		delete(q.timers, timer)
		q.mu.Unlock()

		select {
		case q.jobs <- j:
		case <-q.done:
			observability.VendorPendingReceipts.Dec()
		}
	})
	q.timers[timer] = struct{}{}
	observability.VendorPendingReceipts.Inc()

	return true
}

// Pending returns the number of tasks still waiting on their timer.
func (q *DelayQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

func (q *DelayQueue) work() {
	defer q.workers.Done()

	for {
		select {
		case <-q.done:
			return
		case j := <-q.jobs:
			q.run(j)
		}
	}
}

func (q *DelayQueue) run(j job) {
	observability.VendorPendingReceipts.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.TaskTimeout)
	retry := q.safeCall(ctx, j)
	cancel()

	if !retry {
		return
	}

	if j.attempt >= q.cfg.MaxAttempts {
		q.logger.Warn("task dropped after max attempts", slog.Int("attempts", j.attempt))
		observability.ReceiptsDropped.Inc()
		return
	}

	q.schedule(q.cfg.RedeliveryDelay, job{task: j.task, attempt: j.attempt + 1})
}

func (q *DelayQueue) safeCall(ctx context.Context, j job) (retry bool) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", slog.Any("panic", r), slog.Int("attempt", j.attempt))
			retry = false
		}
	}()
	return j.task(ctx, j.attempt)
}

// Close stops timers that have not fired and waits for running tasks to
// finish. It is safe to call more than once.
func (q *DelayQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	// A timer still in the map has not handed its job over, even if it fired.
	for timer := range q.timers {
		timer.Stop()
		delete(q.timers, timer)
		observability.VendorPendingReceipts.Dec()
	}
	close(q.done)
	q.mu.Unlock()

	q.workers.Wait()
}
