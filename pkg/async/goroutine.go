package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	logMu  sync.RWMutex
	logger logrus.FieldLogger = logrus.StandardLogger()
)

// SetLogger replaces the logger used to report panics and dropped errors.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	logger = l
}

func log() logrus.FieldLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// ErrPoolShutdown is returned when submitting to a pool that is shutting down.
var ErrPoolShutdown = errors.New("worker pool shut down")

// PanicError is a recovered panic.
type PanicError struct {
	Task  string
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Task, e.Value)
}

// Recover runs fn and converts a panic into a *PanicError.
func Recover(taskName string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := &PanicError{Task: taskName, Value: r, Stack: debug.Stack()}
			log().WithField("task", taskName).Errorf("recovered panic: %v\n%s", r, pe.Stack)
			err = pe
		}
	}()
	return fn()
}

// SafeGo executes fn in a goroutine with a timeout and panic recovery.
// Errors are logged, not returned.
//
// Example:
//
//	SafeGo(ctx, 5*time.Minute, "scheduled run", func(ctx context.Context) error {
//	    _, err := runner.Run(ctx)
//	    return err
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		err := Recover(taskName, func() error { return fn(ctx) })
		var pe *PanicError
		if err != nil && !errors.As(err, &pe) {
			log().WithField("task", taskName).WithError(err).Warn("background task failed")
		}
	}()
}

// SafeGoNoError is like SafeGo but for functions that don't return errors.
func SafeGoNoError(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// WorkerPool manages a pool of workers that process tasks from a channel.
type WorkerPool struct {
	workers      int
	taskName     string
	timeout      time.Duration
	workCh       chan func(context.Context) error
	doneCh       chan struct{}
	errCh        chan error
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	closeOnce    sync.Once
}

// NewWorkerPool creates a pool of workers; each task runs with its own timeout.
//
// Example:
//
//	pool := NewWorkerPool(ctx, 4, "parse sources", 30*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//	    return parse(ctx, file)
//	})
func NewWorkerPool(ctx context.Context, workers int, taskName string, timeout time.Duration) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers:  workers,
		taskName: taskName,
		timeout:  timeout,
		workCh:   make(chan func(context.Context) error, workers*2),
		doneCh:   make(chan struct{}),
		errCh:    make(chan error, workers*10),
		ctx:      ctx,
		cancel:   cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				pool.worker(id)
			}(i)
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit queues a task. It fails once the pool is shutting down or its context is done.
func (p *WorkerPool) Submit(fn func(context.Context) error) (err error) {
	select {
	case <-p.doneCh:
		return ErrPoolShutdown
	case <-p.ctx.Done():
		return fmt.Errorf("%w: %v", ErrPoolShutdown, p.ctx.Err())
	default:
	}

	// sending on a channel closed by a concurrent Shutdown panics
	defer func() {
		if r := recover(); r != nil {
			err = ErrPoolShutdown
		}
	}()

	select {
	case p.workCh <- fn:
		return nil
	case <-p.doneCh:
		return ErrPoolShutdown
	}
}

func (p *WorkerPool) closeWork() {
	p.closeOnce.Do(func() { close(p.workCh) })
}

// Shutdown stops accepting work and waits up to timeout for queued tasks.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdownOnce.Do(func() {
		p.closeWork()

		select {
		case <-p.doneCh:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			shutdownErr = fmt.Errorf("worker pool %s shutdown timed out after %v", p.taskName, timeout)
		}
	})

	return shutdownErr
}

// Errors returns a channel that receives task errors.
func (p *WorkerPool) Errors() <-chan error {
	return p.errCh
}

func (p *WorkerPool) report(err error) {
	select {
	case p.errCh <- err:
	default:
		log().WithField("task", p.taskName).WithError(err).Warn("error channel full, dropping error")
	}
}

func (p *WorkerPool) worker(id int) {
	for {
		select {
		case <-p.ctx.Done():
			return

		case fn, ok := <-p.workCh:
			if !ok {
				return
			}

			ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
			err := Recover(fmt.Sprintf("%s worker %d", p.taskName, id), func() error { return fn(ctx) })
			cancel()
			if err != nil {
				p.report(err)
			}
		}
	}
}

// Batch processes items concurrently on a temporary worker pool and returns every
// error encountered, including submission failures after cancellation.
//
// Example:
//
//	errs := Batch(ctx, files, 4, "parse sources", 10*time.Second, func(ctx context.Context, file string) error {
//	    return parse(ctx, file)
//	})
func Batch[T any](ctx context.Context, items []T, workers int, taskName string, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	pool := NewWorkerPool(ctx, workers, taskName, timeout)
	defer pool.Shutdown(5 * time.Second)

	var errs []error
	for _, item := range items {
		item := item
		if err := pool.Submit(func(ctx context.Context) error {
			return fn(ctx, item)
		}); err != nil {
			errs = append(errs, err)
			break
		}
	}

	// drain the queue, then stop the workers
	pool.closeWork()
	<-pool.doneCh
	pool.cancel()

	for {
		select {
		case err := <-pool.errCh:
			errs = append(errs, err)
		default:
			return errs
		}
	}
}
