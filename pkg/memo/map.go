package memo

import (
	"context"
	"sync"
)

// Map holds one Cell per key, created on first access.
type Map[K comparable, V any] struct {
	compute func(context.Context, K) (V, error)

	mu    sync.Mutex
	cells map[K]*Cell[V]
}

// NewMap creates a map whose cells are computed by compute.
func NewMap[K comparable, V any](compute func(context.Context, K) (V, error)) *Map[K, V] {
	return &Map[K, V]{compute: compute, cells: make(map[K]*Cell[V])}
}

// Get returns the memoized value for key.
func (m *Map[K, V]) Get(ctx context.Context, key K) (V, error) {
	return m.cell(key).Get(ctx)
}

func (m *Map[K, V]) cell(key K) *Cell[V] {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cells[key]
	if !ok {
		c = NewCell(func(ctx context.Context) (V, error) {
			return m.compute(ctx, key)
		})
		m.cells[key] = c
	}
	return c
}

// Len returns the number of keys with a memoized value.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.cells {
		if c.Computed() {
			n++
		}
	}
	return n
}

// Clear resets and drops every cell.
func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cells {
		c.Reset()
	}
	m.cells = make(map[K]*Cell[V])
}
