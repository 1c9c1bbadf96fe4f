package memo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_ComputesOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	cell := NewCell(func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	})

	var wg sync.WaitGroup
	results := make([]int, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cell.Get(context.Background())
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
	assert.True(t, cell.Computed())
}

func TestCell_MemoizesErrors(t *testing.T) {
	boom := errors.New("boom")
	var calls int
	cell := NewCell(func(ctx context.Context) (string, error) {
		calls++
		return "", boom
	})

	_, err := cell.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = cell.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestCell_DoesNotMemoizeCancellation(t *testing.T) {
	var calls int
	cell := NewCell(func(ctx context.Context) (int, error) {
		calls++
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 7, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cell.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, cell.Computed())

	v, err := cell.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, calls)
}

func TestCell_WaiterHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	cell := NewCell(func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})

	go func() { _, _ = cell.Get(context.Background()) }()
	require.Eventually(t, func() bool { return cell.Computes() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := cell.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCell_PanicReleasesWaiters(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	cell := NewCell(func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			panic("boom")
		}
		return 42, nil
	})

	go func() {
		defer func() { _ = recover() }()
		_, _ = cell.Get(context.Background())
	}()
	<-started

	waited := make(chan int, 1)
	go func() {
		v, err := cell.Get(context.Background())
		assert.NoError(t, err)
		waited <- v
	}()
	close(release)

	select {
	case v := <-waited:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("waiter still blocked after compute panicked")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	v, err := cell.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCell_PanicIsNotMemoized(t *testing.T) {
	var calls atomic.Int32
	cell := NewCell(func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return 42, nil
	})

	assert.Panics(t, func() { _, _ = cell.Get(context.Background()) })
	assert.False(t, cell.Computed())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	v, err := cell.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestCell_Reset(t *testing.T) {
	var calls atomic.Int32
	cell := NewCell(func(ctx context.Context) (int32, error) {
		return calls.Add(1), nil
	})

	v, err := cell.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	cell.Reset()
	assert.False(t, cell.Computed())

	v, err = cell.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
	assert.Equal(t, uint64(2), cell.Computes())
}

func TestMap(t *testing.T) {
	var calls atomic.Int32
	m := NewMap(func(ctx context.Context, key string) (int, error) {
		calls.Add(1)
		return len(key), nil
	})

	v, err := m.Get(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, 4, v)
	_, err = m.Get(context.Background(), "main")
	require.NoError(t, err)
	_, err = m.Get(context.Background(), "test")
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, m.Len())

	m.Clear()
	assert.Equal(t, 0, m.Len())
	_, err = m.Get(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}
