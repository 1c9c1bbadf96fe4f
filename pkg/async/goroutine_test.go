package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover(t *testing.T) {
	err := Recover("evaluate :app", func() error { return nil })
	assert.NoError(t, err)

	boom := errors.New("boom")
	assert.ErrorIs(t, Recover("evaluate :app", func() error { return boom }), boom)

	err = Recover("evaluate :app", func() error { panic("nil analysis") })
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "evaluate :app", pe.Task)
	assert.Equal(t, "nil analysis", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Contains(t, err.Error(), "panic in evaluate :app")
}

func TestSafeGo_Success(t *testing.T) {
	executed := atomic.Bool{}

	SafeGo(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})

	assert.Eventually(t, executed.Load, time.Second, 10*time.Millisecond)
}

func TestSafeGo_WithError(t *testing.T) {
	executed := atomic.Bool{}

	SafeGo(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return errors.New("test error")
	})

	// logged, not fatal
	assert.Eventually(t, executed.Load, time.Second, 10*time.Millisecond)
}

func TestSafeGo_Timeout(t *testing.T) {
	started := atomic.Bool{}
	completed := atomic.Bool{}

	SafeGo(context.Background(), 50*time.Millisecond, "test task", func(ctx context.Context) error {
		started.Store(true)
		select {
		case <-time.After(200 * time.Millisecond):
			completed.Store(true)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	time.Sleep(150 * time.Millisecond)
	assert.True(t, started.Load())
	assert.False(t, completed.Load(), "function should have been canceled by timeout")
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	executed := atomic.Bool{}

	SafeGo(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		panic("test panic")
	})

	assert.Eventually(t, executed.Load, time.Second, 10*time.Millisecond)
}

func TestSafeGo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := atomic.Bool{}
	completed := atomic.Bool{}

	SafeGo(ctx, 5*time.Second, "test task", func(ctx context.Context) error {
		started.Store(true)
		select {
		case <-time.After(time.Second):
			completed.Store(true)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	time.Sleep(50 * time.Millisecond)
	cancel()
	time.Sleep(100 * time.Millisecond)

	assert.True(t, started.Load())
	assert.False(t, completed.Load())
}

func TestSafeGoNoError(t *testing.T) {
	executed := atomic.Bool{}

	SafeGoNoError(context.Background(), time.Second, "test task", func(ctx context.Context) {
		executed.Store(true)
	})

	assert.Eventually(t, executed.Load, time.Second, 10*time.Millisecond)
}

func TestWorkerPool_Basic(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, "test pool", time.Second)
	defer pool.Shutdown(time.Second)

	executed := atomic.Int32{}
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			executed.Add(1)
			return nil
		}))
	}

	assert.Eventually(t, func() bool { return executed.Load() == 10 }, time.Second, 10*time.Millisecond)
}

func TestWorkerPool_WithErrors(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, "test pool", time.Second)

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			return errors.New("test error")
		}))
	}
	require.NoError(t, pool.Shutdown(time.Second))

	errorCount := 0
	for {
		select {
		case <-pool.Errors():
			errorCount++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 5, errorCount)
}

func TestWorkerPool_Panic(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "test pool", time.Second)
	require.NoError(t, pool.Submit(func(ctx context.Context) error { panic("bad file") }))
	require.NoError(t, pool.Shutdown(time.Second))

	select {
	case err := <-pool.Errors():
		var pe *PanicError
		assert.ErrorAs(t, err, &pe)
	default:
		t.Fatal("expected a panic error")
	}
}

func TestWorkerPool_Shutdown(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 2, "test pool", time.Second)

	executed := atomic.Int32{}
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			time.Sleep(50 * time.Millisecond)
			executed.Add(1)
			return nil
		}))
	}

	require.NoError(t, pool.Shutdown(time.Second))
	assert.Equal(t, int32(5), executed.Load())

	err := pool.Submit(func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolShutdown)
}

func TestWorkerPool_Timeout(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, "test pool", 50*time.Millisecond)
	defer pool.Shutdown(time.Second)

	timedOut := atomic.Bool{}
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		select {
		case <-time.After(200 * time.Millisecond):
			return nil
		case <-ctx.Done():
			timedOut.Store(true)
			return ctx.Err()
		}
	}))

	assert.Eventually(t, timedOut.Load, time.Second, 10*time.Millisecond)
}

func TestBatch(t *testing.T) {
	tests := []struct {
		name      string
		fn        func(context.Context, int) error
		wantErrs  int
		wantCalls int32
	}{
		{name: "all succeed", fn: func(context.Context, int) error { return nil }, wantCalls: 5},
		{
			name: "even items fail",
			fn: func(_ context.Context, item int) error {
				if item%2 == 0 {
					return errors.New("even number error")
				}
				return nil
			},
			wantErrs:  2,
			wantCalls: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := atomic.Int32{}
			errs := Batch(context.Background(), []int{1, 2, 3, 4, 5}, 2, "test batch", time.Second, func(ctx context.Context, item int) error {
				calls.Add(1)
				return tt.fn(ctx, item)
			})
			assert.Len(t, errs, tt.wantErrs)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestBatch_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	executed := atomic.Int32{}

	errs := Batch(ctx, []int{1, 2, 3, 4, 5}, 2, "test batch", time.Second, func(ctx context.Context, item int) error {
		executed.Add(1)
		time.Sleep(100 * time.Millisecond)
		return nil
	})

	assert.Less(t, executed.Load(), int32(5))
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0], ErrPoolShutdown)
}
