// Package tasks runs background work submitted by the request path, so
// outbound calls (spam checks, notifications) happen after the primary
// database transaction has committed.
package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Task is a unit of background work. Tasks run with at-least-once
// semantics and must therefore be idempotent.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner is an in-process queue with a fixed worker pool. Failed tasks
// are retried with exponential backoff up to a bounded number of
// attempts, then dropped with an error log.
type Runner struct {
	queue   chan Task
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	retries uint64
}

func NewRunner(workers, queueSize int, retries uint64) *Runner {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		queue:   make(chan Task, queueSize),
		cancel:  cancel,
		retries: retries,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.work(ctx)
	}
	return r
}

// Submit enqueues a task. When the queue is full the task is dropped and
// logged rather than blocking the caller's request.
func (r *Runner) Submit(task Task) {
	select {
	case r.queue <- task:
	default:
		slog.Error("background task queue full, dropping task", "task", task.Name)
	}
}

func (r *Runner) work(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-r.queue:
			r.execute(ctx, task)
		}
	}
}

func (r *Runner) execute(ctx context.Context, task Task) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.retries), ctx)

	err := backoff.Retry(func() error {
		return task.Run(ctx)
	}, policy)
	if err != nil {
		slog.Error("background task failed", "task", task.Name, "error", err)
	}
}

// Stop cancels the workers and waits briefly for in-flight tasks.
func (r *Runner) Stop() {
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		slog.Error("background runner stop timed out")
	}
}
