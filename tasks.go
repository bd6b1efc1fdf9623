package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of background work. Its error is logged and never reaches
// the request that submitted it.
type Task struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// TaskQueue runs submitted tasks on a fixed pool of workers
type TaskQueue struct {
	tasks   chan Task
	logger  Logger
	metrics *Metrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool

	group  *errgroup.Group
	cancel context.CancelFunc
}

var _ TaskSubmitter = (*TaskQueue)(nil)

// TaskQueueOption configures a TaskQueue
type TaskQueueOption func(*TaskQueue)

// WithTaskLogger sets the queue logger
func WithTaskLogger(logger Logger) TaskQueueOption {
	return func(q *TaskQueue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithTaskMetrics reports queue depth to m
func WithTaskMetrics(m *Metrics) TaskQueueOption {
	return func(q *TaskQueue) {
		q.metrics = m
	}
}

// WithTaskTimeout sets the default per task timeout
func WithTaskTimeout(d time.Duration) TaskQueueOption {
	return func(q *TaskQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// NewTaskQueue creates a queue with the given buffer size. Call Start to run
// the workers.
func NewTaskQueue(size int, opts ...TaskQueueOption) *TaskQueue {
	if size <= 0 {
		size = 64
	}

	q := &TaskQueue{
		tasks:   make(chan Task, size),
		logger:  defLogger{},
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q
}

// Start launches workers that drain the queue until Close is called or ctx
// is cancelled
func (q *TaskQueue) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}

	ctx, q.cancel = context.WithCancel(ctx)
	q.group, ctx = errgroup.WithContext(ctx)

	for i := 0; i < workers; i++ {
		q.group.Go(func() error {
			q.work(ctx)
			return nil
		})
	}
}

func (q *TaskQueue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-q.tasks:
			if !ok {
				return
			}
			q.metrics.taskDequeued()
			q.run(ctx, task)
		}
	}
}

func (q *TaskQueue) run(ctx context.Context, task Task) {
	timeout := task.Timeout
	if timeout <= 0 {
		timeout = q.timeout
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", "task", task.Name, "panic", r)
		}
	}()

	if err := task.Run(ctx); err != nil {
		q.logger.Error("task failed", "task", task.Name, "error", err)
		return
	}
	q.logger.Debug("task done", "task", task.Name)
}

// Submit enqueues task without blocking
func (q *TaskQueue) Submit(task Task) error {
	if task.Run == nil {
		return nil
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		q.metrics.taskQueued()
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting tasks, lets the workers drain what is queued and
// waits for them. It returns early with ctx.Err() if ctx ends first.
func (q *TaskQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	if q.group == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- q.group.Wait()
	}()

	select {
	case err := <-done:
		q.cancel()
		return err
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

// InlineTasks runs tasks synchronously on Submit. Useful in tests and in
// tools that do not start a queue.
type InlineTasks struct {
	Logger Logger
}

var _ TaskSubmitter = InlineTasks{}

// Submit runs task immediately
func (i InlineTasks) Submit(task Task) error {
	if task.Run == nil {
		return nil
	}

	ctx := context.Background()
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	if err := task.Run(ctx); err != nil && i.Logger != nil {
		i.Logger.Error("task failed", "task", task.Name, "error", err)
	}
	return nil
}
