package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	tasksEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assess_tasks_enqueued_total",
		Help: "Background tasks accepted by the dispatcher.",
	}, []string{"task"})

	tasksDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assess_tasks_dropped_total",
		Help: "Background tasks rejected because the queue was full or closed.",
	}, []string{"task"})

	tasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assess_tasks_completed_total",
		Help: "Background tasks finished, by outcome.",
	}, []string{"task", "outcome"})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assess_task_duration_seconds",
		Help:    "Background task execution time.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
)

// ErrQueueFull is returned when the dispatcher cannot accept more work.
var ErrQueueFull = errors.New("task queue full")

// Task is one unit of background work. The context passed in is owned by the
// dispatcher, not by the HTTP request that enqueued the task.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher runs fire-and-forget tasks on a fixed worker pool. Delivery is
// at most once: a full queue drops the task rather than blocking the caller.
type Dispatcher struct {
	logger  zerolog.Logger
	queue   chan Task
	timeout time.Duration

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts workers goroutines draining a queue of the given size.
func NewDispatcher(workers, queueSize int, timeout time.Duration, logger zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}

	d := &Dispatcher{
		logger:  logger.With().Str("component", "dispatcher").Logger(),
		queue:   make(chan Task, queueSize),
		timeout: timeout,
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker(i)
	}

	d.logger.Info().
		Int("workers", workers).
		Int("queue_size", queueSize).
		Msg("dispatcher started")
	return d
}

// Enqueue hands a task to the pool. It never blocks; callers on the request
// path treat ErrQueueFull as a degraded-mode signal, not a request failure.
func (d *Dispatcher) Enqueue(task Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		tasksDropped.WithLabelValues(task.Name).Inc()
		return ErrQueueFull
	}

	select {
	case d.queue <- task:
		tasksEnqueued.WithLabelValues(task.Name).Inc()
		return nil
	default:
		tasksDropped.WithLabelValues(task.Name).Inc()
		d.logger.Warn().Str("task", task.Name).Msg("queue full, task dropped")
		return ErrQueueFull
	}
}

// Shutdown stops accepting work and waits for in-flight tasks to finish.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info().Msg("dispatcher stopped")
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for task := range d.queue {
		d.execute(id, task)
	}
}

func (d *Dispatcher) execute(worker int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			tasksCompleted.WithLabelValues(task.Name, "panic").Inc()
			d.logger.Error().
				Int("worker", worker).
				Str("task", task.Name).
				Interface("panic", r).
				Msg("task panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	err := task.Run(ctx)
	taskDuration.WithLabelValues(task.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		tasksCompleted.WithLabelValues(task.Name, "error").Inc()
		d.logger.Error().
			Err(err).
			Int("worker", worker).
			Str("task", task.Name).
			Dur("duration", time.Since(start)).
			Msg("task failed")
		return
	}

	tasksCompleted.WithLabelValues(task.Name, "ok").Inc()
	d.logger.Debug().
		Int("worker", worker).
		Str("task", task.Name).
		Dur("duration", time.Since(start)).
		Msg("task done")
}
