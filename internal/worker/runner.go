package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	kerrors "github.com/berrythewa/clipkeep/internal/errors"
	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/pkg/utils"
)

// Env is what a task sees while it runs on a worker
type Env struct {
	Store  storage.Store
	Logger *zap.Logger
}

// Task is one unit of background work producing a T
type Task[T any] interface {
	Name() string
	Run(ctx context.Context, env Env) (T, error)
}

// Options configures a Runner
type Options struct {
	PoolSize  int
	QueueSize int
	// Post delivers completion callbacks to the owner's goroutine.
	// When nil, callbacks run on the worker that finished the task.
	Post   func(func())
	Logger *zap.Logger
}

type job struct {
	id   string
	name string
	// exec runs the task and returns the completion to post
	exec func(ctx context.Context, env Env) (func(), error)
	fail func(err error) func()
}

// Runner executes tasks on a fixed pool of goroutines. Every task gets its
// own storage session; completion order is not submission order.
type Runner struct {
	backend storage.Backend
	post    func(func())
	logger  *zap.Logger
	size    int

	mu     sync.RWMutex
	queue  chan job
	closed bool
	group  *errgroup.Group
}

// NewRunner creates a runner over backend. Call Start before submitting.
func NewRunner(backend storage.Backend, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	post := opts.Post
	if post == nil {
		post = func(fn func()) { fn() }
	}
	size := opts.PoolSize
	if size < 1 {
		size = 1
	}
	return &Runner{
		backend: backend,
		post:    post,
		logger:  logger,
		size:    size,
		queue:   make(chan job, max(opts.QueueSize, 1)),
	}
}

// Start launches the worker goroutines. Tasks already submitted are never
// cancelled: ctx only scopes values, and shutdown goes through Stop.
func (r *Runner) Start(ctx context.Context) {
	runCtx := context.WithoutCancel(ctx)
	g, _ := errgroup.WithContext(runCtx)
	for i := 0; i < r.size; i++ {
		g.Go(func() error {
			for j := range r.queue {
				r.execute(runCtx, j)
			}
			return nil
		})
	}
	r.group = g
	r.logger.Debug("Task runner started",
		zap.Int("workers", r.size),
		zap.Int("queue", cap(r.queue)))
}

// Stop refuses new work, drains the queue and waits for in-flight tasks
func (r *Runner) Stop() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	if r.group == nil {
		return nil
	}
	err := r.group.Wait()
	r.logger.Debug("Task runner stopped")
	return err
}

func (r *Runner) enqueue(j job) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return kerrors.NewUnavailable("task runner is stopped", nil)
	}
	select {
	case r.queue <- j:
		return nil
	default:
		return kerrors.NewUnavailable(fmt.Sprintf("task queue full (%d pending)", cap(r.queue)), nil)
	}
}

func (r *Runner) execute(ctx context.Context, j job) {
	logger := r.logger.With(zap.String("task_id", j.id), zap.String("task", j.name))
	start := time.Now()

	done, err := r.runJob(ctx, j, logger)
	if err != nil {
		if kerrors.Is(err, kerrors.ErrNotFound) {
			logger.Debug("Task finished without result", zap.Error(err))
		} else {
			logger.Warn("Task failed", zap.Error(err))
		}
	} else {
		logger.Debug("Task completed", zap.Duration("took", time.Since(start)))
	}
	r.post(done)
}

func (r *Runner) runJob(ctx context.Context, j job, logger *zap.Logger) (done func(), err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
			done = j.fail(err)
		}
	}()

	s, err := r.backend.Session(ctx)
	if err != nil {
		return j.fail(err), err
	}
	defer s.Close()

	return j.exec(ctx, Env{Store: s, Logger: logger})
}

// Submit queues task on r. onResult runs only when the task succeeds;
// onFinished always runs, with the task's error or nil. Both are delivered
// through the runner's Post function. If the task cannot be queued,
// onFinished runs synchronously on the caller with an ErrUnavailable error
// and the returned id is empty.
func Submit[T any](r *Runner, task Task[T], onResult func(T), onFinished func(error)) string {
	finish := func(err error) func() {
		return func() {
			if onFinished != nil {
				onFinished(err)
			}
		}
	}

	j := job{
		id:   utils.NewTaskID(),
		name: task.Name(),
		fail: finish,
		exec: func(ctx context.Context, env Env) (func(), error) {
			out, err := task.Run(ctx, env)
			return func() {
				if err == nil && onResult != nil {
					onResult(out)
				}
				if onFinished != nil {
					onFinished(err)
				}
			}, err
		},
	}

	if err := r.enqueue(j); err != nil {
		r.logger.Warn("Task rejected", zap.String("task", j.name), zap.Error(err))
		finish(err)()
		return ""
	}
	return j.id
}

// Await submits task and blocks until it finishes. It is for callers that
// are not the runner's owner goroutine, such as IPC handlers.
func Await[T any](ctx context.Context, r *Runner, task Task[T]) (T, error) {
	type outcome struct {
		out T
		err error
	}
	ch := make(chan outcome, 1)
	var result T
	Submit(r, task,
		func(out T) { result = out },
		func(err error) { ch <- outcome{out: result, err: err} })

	select {
	case o := <-ch:
		return o.out, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
