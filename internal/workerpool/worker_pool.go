// Package workerpool implements a small fixed-size worker pool with
// stable integer worker ids, adapted from the teacher's
// pkg/workerpool.WorkerPool. Two call sites use it in this system:
//
//   - the instrumented engine's dispatcher runs each op's kernel across
//     this pool; Worker.ID is the stable small integer the tracer hook
//     (internal/tracer) reuses directly as a record's thread_id
//     (spec.md §4.1: "thread_id() returns a u16 stable within the
//     process"), sidestepping any OS-thread-id syscall.
//   - the offline pipeline (internal/offline) fans the four parsers out
//     across this pool, since they are independent reads of four
//     distinct artifacts (spec.md §4.10).
package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrPoolNotRunning = errors.New("workerpool: pool is not running")
	ErrQueueFull      = errors.New("workerpool: task queue is full")
)

// Task is a unit of work submitted to the pool.
type Task struct {
	ID      string
	Execute func(ctx context.Context) error
}

// Config configures a WorkerPool.
type Config struct {
	MaxWorkers      int
	QueueSize       int
	ShutdownTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = c.MaxWorkers * 8
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// Worker is one pool slot with a stable small integer id, unique
// within its pool (0..MaxWorkers-1) and assigned at pool construction.
type Worker struct {
	ID       int
	taskChan chan Task
}

// WorkerPool runs submitted tasks across a fixed set of Workers.
type WorkerPool struct {
	config  Config
	logger  *logrus.Logger
	workers []*Worker

	taskQueue chan Task
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	completedTasks int64
	failedTasks    int64

	mu        sync.RWMutex
	isRunning bool
}

// New builds a WorkerPool. Workers are created but not started.
func New(config Config, logger *logrus.Logger) *WorkerPool {
	config.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	wp := &WorkerPool{
		config:    config,
		logger:    logger,
		taskQueue: make(chan Task, config.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		workers:   make([]*Worker, 0, config.MaxWorkers),
	}
	for i := 0; i < config.MaxWorkers; i++ {
		wp.workers = append(wp.workers, &Worker{ID: i, taskChan: make(chan Task, 1)})
	}
	return wp
}

// Workers returns the pool's workers, exposing their stable ids to
// callers that need to hand a Worker.ID to the tracer hook.
func (wp *WorkerPool) Workers() []*Worker { return wp.workers }

// Start begins dispatching submitted tasks to workers.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.isRunning {
		return
	}
	for _, w := range wp.workers {
		wp.wg.Add(1)
		go wp.runWorker(w)
	}
	wp.isRunning = true
}

func (wp *WorkerPool) runWorker(w *Worker) {
	defer wp.wg.Done()
	for {
		select {
		case task, ok := <-w.taskChan:
			if !ok {
				return
			}
			wp.execute(task)
		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) execute(task Task) {
	if err := task.Execute(wp.ctx); err != nil {
		atomic.AddInt64(&wp.failedTasks, 1)
		if wp.logger != nil {
			wp.logger.WithError(err).WithField("task", task.ID).Warn("workerpool task failed")
		}
		return
	}
	atomic.AddInt64(&wp.completedTasks, 1)
}

// Submit hands task to the first worker, scanning from worker 0, whose
// single-slot channel has room. If every channel is full it queues the
// task (waiting up to one second for queue space) and runs it on a
// separate goroutine.
func (wp *WorkerPool) Submit(task Task) error {
	wp.mu.RLock()
	running := wp.isRunning
	wp.mu.RUnlock()
	if !running {
		return ErrPoolNotRunning
	}

	for _, w := range wp.workers {
		select {
		case w.taskChan <- task:
			return nil
		default:
			continue
		}
	}
	// every worker busy: queue it; drainQueueOnce runs it off the workers.
	select {
	case wp.taskQueue <- task:
		go wp.drainQueueOnce()
		return nil
	case <-time.After(time.Second):
		return ErrQueueFull
	}
}

func (wp *WorkerPool) drainQueueOnce() {
	select {
	case task := <-wp.taskQueue:
		wp.execute(task)
	case <-wp.ctx.Done():
	}
}

// Stats summarizes pool throughput for metrics.
type Stats struct {
	MaxWorkers     int
	CompletedTasks int64
	FailedTasks    int64
}

func (wp *WorkerPool) Stats() Stats {
	return Stats{
		MaxWorkers:     wp.config.MaxWorkers,
		CompletedTasks: atomic.LoadInt64(&wp.completedTasks),
		FailedTasks:    atomic.LoadInt64(&wp.failedTasks),
	}
}

// Stop cancels outstanding work and waits (bounded by
// Config.ShutdownTimeout) for workers to exit.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if !wp.isRunning {
		wp.mu.Unlock()
		return
	}
	wp.isRunning = false
	wp.mu.Unlock()

	wp.cancel()
	for _, w := range wp.workers {
		close(w.taskChan)
	}

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(wp.config.ShutdownTimeout):
		if wp.logger != nil {
			wp.logger.Warn("workerpool: shutdown timed out")
		}
	}
}
