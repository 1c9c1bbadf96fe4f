// Package memo provides computed-once cache cells shared by concurrent readers.
//
// A Cell runs its compute function at most once per generation. Callers that
// arrive while the value is being computed wait on a channel and give up when their
// context is done, without cancelling the computation for everyone else. Reset
// drops the value so memory can be reclaimed; the next Get computes it again.
package memo

import (
	"context"
	"errors"
	"sync"
)

// Cell is a lazily computed value.
type Cell[T any] struct {
	compute func(context.Context) (T, error)

	mu         sync.Mutex
	done       bool
	value      T
	err        error
	wait       chan struct{}
	generation uint64
	computes   uint64
}

// NewCell creates a cell backed by compute.
func NewCell[T any](compute func(context.Context) (T, error)) *Cell[T] {
	return &Cell[T]{compute: compute}
}

// Get returns the memoized value, computing it on first use. Context errors
// returned by compute are not memoized.
func (c *Cell[T]) Get(ctx context.Context) (T, error) {
	for {
		c.mu.Lock()
		if c.done {
			v, err := c.value, c.err
			c.mu.Unlock()
			return v, err
		}
		if wait := c.wait; wait != nil {
			c.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				var zero T
				return zero, ctx.Err()
			}
		}

		wait := make(chan struct{})
		c.wait = wait
		gen := c.generation
		c.computes++
		c.mu.Unlock()

		return c.run(ctx, wait, gen)
	}
}

// run computes the value and releases waiters. A panicking compute stores
// nothing and is re-raised after the waiters are released, so the next Get
// computes again.
func (c *Cell[T]) run(ctx context.Context, wait chan struct{}, gen uint64) (v T, err error) {
	completed := false
	defer func() {
		c.mu.Lock()
		if completed && c.generation == gen && !isContextErr(err) {
			c.value, c.err, c.done = v, err, true
		}
		if c.wait == wait {
			c.wait = nil
		}
		c.mu.Unlock()
		close(wait)
	}()

	if err = ctx.Err(); err == nil {
		v, err = c.compute(ctx)
	}
	completed = true
	return v, err
}

// Reset discards the memoized value. A computation in flight completes for its
// waiters but its result is not stored.
func (c *Cell[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value, c.err, c.done = zero, nil, false
	c.generation++
	c.wait = nil
}

// Computed reports whether a value is currently memoized.
func (c *Cell[T]) Computed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Computes returns how many times compute has been started.
func (c *Cell[T]) Computes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.computes
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
