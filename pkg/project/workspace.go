package project

import (
	"sort"
	"sync"

	"github.com/platinummonkey/modcheck/pkg/dependencies"
)

// Workspace is the loaded module graph.
type Workspace struct {
	Root string

	mu      sync.RWMutex
	modules map[string]*Module
}

// NewWorkspace creates a workspace holding modules.
func NewWorkspace(root string, modules ...*Module) *Workspace {
	w := &Workspace{Root: root, modules: make(map[string]*Module)}
	for _, m := range modules {
		w.Add(m)
	}
	return w
}

// Add registers m, replacing any module with the same path.
func (w *Workspace) Add(m *Module) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.modules[m.Path] = m
}

// Module looks a module up by path.
func (w *Workspace) Module(path string) (*Module, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	m, ok := w.modules[path]
	return m, ok
}

// Modules returns every module sorted by path.
func (w *Workspace) Modules() []*Module {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Module, 0, len(w.modules))
	for _, m := range w.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Len returns the number of modules.
func (w *Workspace) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.modules)
}

// Graph builds the project dependency graph from the currently declared dependencies.
// Edges to paths outside the workspace are kept so that they surface in reports.
func (w *Workspace) Graph() *dependencies.DependencyGraph {
	graph := dependencies.NewDependencyGraph()
	for _, m := range w.Modules() {
		var deps []dependencies.Dependency
		for _, d := range m.Dependencies.Projects() {
			deps = append(deps, dependencies.Dependency{
				Module:        d.Path,
				Configuration: string(d.Configuration),
				Type:          "direct",
			})
		}
		graph.AddNode(m.Path, deps)
	}
	return graph
}

// Dependents returns the modules declaring any project dependency on path.
func (w *Workspace) Dependents(path string) []*Module {
	var out []*Module
	for _, m := range w.Modules() {
		for _, d := range m.Dependencies.Projects() {
			if d.Path == path {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// ClearCaches drops every module's memoized analysis.
func (w *Workspace) ClearCaches() {
	for _, m := range w.Modules() {
		m.ClearCache()
	}
}

// Validate checks every module's source set relation.
func (w *Workspace) Validate() error {
	for _, m := range w.Modules() {
		if err := m.ValidateSourceSets(); err != nil {
			return err
		}
	}
	return nil
}
