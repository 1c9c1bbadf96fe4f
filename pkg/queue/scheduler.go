// Package queue walks a workspace's modules with bounded parallelism.
//
// Modules are dispatched by descending depth so that the most connected modules
// run first, and a module is preferably dispatched only after every module that
// depends on it. When a module finishes, the analysis caches of modules no
// pending module can still need are dropped.
package queue

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/modcheck/pkg/async"
	"github.com/platinummonkey/modcheck/pkg/dependencies"
	"github.com/platinummonkey/modcheck/pkg/project"
)

var queueTracer = otel.Tracer("modcheck/queue")

// Task processes one module.
type Task func(ctx context.Context, m *project.Module) error

// Observer is notified about scheduling events.
type Observer interface {
	ModuleStarted(path string)
	ModuleFinished(path string, duration time.Duration, err error)
	CacheEvicted(path string)
}

// DefaultConcurrency is half the available CPUs, at least one.
func DefaultConcurrency() int {
	n := runtime.NumCPU()
	if n < 2 {
		n = 2
	}
	return n / 2
}

// Scheduler runs a task for every module of a workspace.
type Scheduler struct {
	ws          *project.Workspace
	concurrency int
	log         logrus.FieldLogger
	observer    Observer
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithConcurrency caps the number of modules processed at once. Values below
// one select DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithObserver installs an observer.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// New creates a scheduler for ws.
func New(ws *project.Workspace, opts ...Option) *Scheduler {
	s := &Scheduler{
		ws:          ws,
		concurrency: DefaultConcurrency(),
		log:         logrus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Concurrency returns the in-flight module cap.
func (s *Scheduler) Concurrency() int { return s.concurrency }

// Order returns the workspace's modules by descending depth, then by path.
// A dependency cycle yields an error wrapping dependencies.ErrCycle.
func (s *Scheduler) Order() ([]string, error) {
	return order(s.ws, s.ws.Graph())
}

func order(ws *project.Workspace, graph *dependencies.DependencyGraph) ([]string, error) {
	depths, err := graph.Depths()
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, m := range ws.Modules() {
		paths = append(paths, m.Path)
	}
	sort.SliceStable(paths, func(i, j int) bool {
		if depths[paths[i]] != depths[paths[j]] {
			return depths[paths[i]] > depths[paths[j]]
		}
		return paths[i] < paths[j]
	})
	return paths, nil
}

// Run dispatches task for every module and waits for all of them. The first task
// error cancels the remaining dispatches and is returned. Cancellation is observed
// between modules. On any failure every module cache is cleared.
func (s *Scheduler) Run(ctx context.Context, task Task) (err error) {
	ctx, span := queueTracer.Start(ctx, "queue.Run", trace.WithAttributes(
		attribute.Int("modules", s.ws.Len()),
		attribute.Int("concurrency", s.concurrency),
	))
	defer span.End()

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scheduler failed")
			s.ws.ClearCaches()
			s.log.WithError(err).Debug("cleared all module caches")
		}
	}()

	if err := s.ws.Validate(); err != nil {
		return err
	}
	graph := s.ws.Graph()
	paths, err := order(s.ws, graph)
	if err != nil {
		return fmt.Errorf("cannot schedule modules: %w", err)
	}

	st := newState(graph, paths)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for {
		if gctx.Err() != nil {
			break
		}
		path, ok := st.next()
		if !ok {
			break
		}
		m, _ := s.ws.Module(path)
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return s.process(gctx, st, m, task)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Scheduler) process(ctx context.Context, st *state, m *project.Module, task Task) error {
	start := time.Now()
	if s.observer != nil {
		s.observer.ModuleStarted(m.Path)
	}
	err := async.Recover("module "+m.Path, func() error { return task(ctx, m) })
	if s.observer != nil {
		s.observer.ModuleFinished(m.Path, time.Since(start), err)
	}

	for _, path := range st.finish(m.Path) {
		evicted, ok := s.ws.Module(path)
		if !ok {
			continue
		}
		evicted.ClearCache()
		if s.observer != nil {
			s.observer.CacheEvicted(path)
		}
		s.log.WithField("module", path).Trace("evicted analysis cache")
	}
	if err != nil {
		return fmt.Errorf("module %s: %w", m.Path, err)
	}
	return nil
}

// state tracks which modules are undispatched, pending and evicted.
type state struct {
	mu sync.Mutex

	remaining    []string
	undispatched map[string]bool
	// pending holds modules that have not finished, dispatched or not
	pending map[string]bool
	evicted map[string]bool

	dependents             map[string][]string
	transitiveDependents   map[string][]string
	dependencies           map[string][]string
	transitiveDependencies map[string][]string
}

func newState(graph *dependencies.DependencyGraph, paths []string) *state {
	st := &state{
		remaining:              paths,
		undispatched:           make(map[string]bool, len(paths)),
		pending:                make(map[string]bool, len(paths)),
		evicted:                make(map[string]bool, len(paths)),
		dependents:             make(map[string][]string, len(paths)),
		transitiveDependents:   make(map[string][]string, len(paths)),
		dependencies:           make(map[string][]string, len(paths)),
		transitiveDependencies: make(map[string][]string, len(paths)),
	}
	for _, p := range paths {
		st.undispatched[p] = true
		st.pending[p] = true
		for _, d := range graph.GetDependents(p) {
			st.dependents[p] = append(st.dependents[p], d.Module)
		}
		st.transitiveDependents[p] = graph.GetTransitiveDependents(p)
		for _, d := range graph.GetDependencies(p) {
			st.dependencies[p] = append(st.dependencies[p], d.Module)
		}
		for _, d := range graph.GetTransitiveDependencies(p) {
			st.transitiveDependencies[p] = append(st.transitiveDependencies[p], d.Module)
		}
	}
	return st
}

// next pops the first remaining module none of whose dependents is still
// undispatched, falling back to the head of the queue.
func (st *state) next() (string, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.remaining) == 0 {
		return "", false
	}
	pick := 0
	for i, p := range st.remaining {
		if !st.anyUndispatched(st.dependents[p]) {
			pick = i
			break
		}
	}
	path := st.remaining[pick]
	st.remaining = append(st.remaining[:pick], st.remaining[pick+1:]...)
	delete(st.undispatched, path)
	return path, true
}

func (st *state) anyUndispatched(paths []string) bool {
	for _, p := range paths {
		if st.undispatched[p] {
			return true
		}
	}
	return false
}

func (st *state) anyPending(paths []string) bool {
	for _, p := range paths {
		if st.pending[p] {
			return true
		}
	}
	return false
}

// finish marks path done and returns the modules whose caches can be dropped:
// finished modules with no pending transitive dependent and no pending direct
// dependency, whose rules read their dependents' analyses.
func (st *state) finish(path string) []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.pending, path)

	candidates := append([]string{path}, st.transitiveDependencies[path]...)
	candidates = append(candidates, st.dependents[path]...)

	var out []string
	for _, c := range candidates {
		if st.evicted[c] || st.pending[c] {
			continue
		}
		if _, known := st.transitiveDependents[c]; !known {
			continue
		}
		if st.anyPending(st.transitiveDependents[c]) || st.anyPending(st.dependencies[c]) {
			continue
		}
		st.evicted[c] = true
		out = append(out, c)
	}
	return out
}
