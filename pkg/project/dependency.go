package project

import (
	"sort"
	"sync"

	"github.com/platinummonkey/modcheck/pkg/descriptor"
)

// Dependency is one declared edge, owned by a module's configuration. It points at
// another module (Path) or at an external artifact (Coordinates).
type Dependency struct {
	Configuration ConfigurationName `json:"configuration"`
	Path          string            `json:"path,omitempty"`
	Coordinates   string            `json:"coordinates,omitempty"`
	Version       string            `json:"version,omitempty"`
	TestFixture   bool              `json:"testFixture,omitempty"`
}

// ProjectDependency returns a dependency on the module at path.
func ProjectDependency(cfg ConfigurationName, path string, testFixture bool) Dependency {
	return Dependency{Configuration: cfg, Path: path, TestFixture: testFixture}
}

// IsProject reports whether the dependency targets another module.
func (d Dependency) IsProject() bool { return d.Path != "" }

// Identifier is the dependency target: a module path or external coordinates.
func (d Dependency) Identifier() string {
	if d.Path != "" {
		return d.Path
	}
	return d.Coordinates
}

// Key identifies the dependency by target, configuration and test-fixture flag.
func (d Dependency) Key() string {
	k := string(d.Configuration) + "|" + d.Identifier()
	if d.TestFixture {
		k += "|fixtures"
	}
	return k
}

// WithConfiguration returns a copy of d declared in cfg.
func (d Dependency) WithConfiguration(cfg ConfigurationName) Dependency {
	d.Configuration = cfg
	return d
}

func (d Dependency) String() string {
	s := string(d.Configuration) + "(" + d.Identifier() + ")"
	if d.TestFixture {
		s = string(d.Configuration) + "(testFixtures(" + d.Identifier() + "))"
	}
	return s
}

// DependencySet is the mutable, ordered set of a module's declared dependencies.
type DependencySet struct {
	mu    sync.RWMutex
	items []Dependency
	index map[string]int
}

// NewDependencySet creates a set holding deps in order, dropping duplicates.
func NewDependencySet(deps ...Dependency) *DependencySet {
	s := &DependencySet{index: make(map[string]int)}
	for _, d := range deps {
		s.Add(d)
	}
	return s
}

// Add inserts d and reports whether it was not already present.
func (s *DependencySet) Add(d Dependency) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[d.Key()]; ok {
		return false
	}
	s.index[d.Key()] = len(s.items)
	s.items = append(s.items, d)
	return true
}

// Remove deletes d and reports whether it was present.
func (s *DependencySet) Remove(d Dependency) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[d.Key()]
	if !ok {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, d.Key())
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].Key()] = j
	}
	return true
}

// Contains reports whether d is declared.
func (s *DependencySet) Contains(d Dependency) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[d.Key()]
	return ok
}

// All returns a snapshot in declaration order.
func (s *DependencySet) All() []Dependency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Dependency(nil), s.items...)
}

// Len returns the number of declared dependencies.
func (s *DependencySet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// InConfiguration returns the dependencies declared in cfg.
func (s *DependencySet) InConfiguration(cfg ConfigurationName) []Dependency {
	return s.Filter(func(d Dependency) bool { return d.Configuration == cfg })
}

// InSourceSet returns the dependencies whose configuration belongs to ss.
func (s *DependencySet) InSourceSet(ss SourceSetName) []Dependency {
	return s.Filter(func(d Dependency) bool { return d.Configuration.SourceSet() == ss })
}

// Projects returns the project dependencies.
func (s *DependencySet) Projects() []Dependency {
	return s.Filter(Dependency.IsProject)
}

// Filter returns the dependencies matching keep.
func (s *DependencySet) Filter(keep func(Dependency) bool) []Dependency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Dependency
	for _, d := range s.items {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// Targets returns the distinct project paths depended upon, sorted.
func (s *DependencySet) Targets() []string {
	seen := make(map[string]bool)
	for _, d := range s.Projects() {
		seen[d.Path] = true
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// FromStatement converts a parsed dependency statement.
func FromStatement(s *descriptor.Statement) Dependency {
	return Dependency{
		Configuration: ConfigurationName(s.Configuration),
		Path:          s.ProjectPath,
		Coordinates:   s.Coordinates,
		Version:       s.Version,
		TestFixture:   s.TestFixture,
	}
}

// Matches reports whether the statement declares d.
func (d Dependency) Matches(s *descriptor.Statement) bool {
	return FromStatement(s).Key() == d.Key()
}
