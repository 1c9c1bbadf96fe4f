package dependencies

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrCycle is returned when the module graph contains a dependency cycle.
var ErrCycle = errors.New("dependency cycle detected")

// Dependency represents a module dependency
type Dependency struct {
	Module        string `json:"module"`
	Configuration string `json:"configuration,omitempty"`
	Type          string `json:"type"` // "direct" or "transitive"
}

// DependencyGraph is the project-to-project dependency graph of a workspace.
// It is built once per run and read concurrently afterwards.
type DependencyGraph struct {
	nodes map[string]*Node
	edges map[string][]string // module -> distinct dependency modules
}

// Node represents a node in the dependency graph
type Node struct {
	Module       string
	Dependencies []Dependency
}

// NewDependencyGraph creates a new dependency graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*Node),
		edges: make(map[string][]string),
	}
}

// AddNode adds a node to the graph. Several dependencies on the same module
// through different configurations produce a single edge.
func (g *DependencyGraph) AddNode(module string, deps []Dependency) {
	g.nodes[module] = &Node{
		Module:       module,
		Dependencies: deps,
	}

	seen := make(map[string]bool, len(deps))
	edges := make([]string, 0, len(deps))
	for _, dep := range deps {
		if seen[dep.Module] || dep.Module == module {
			continue
		}
		seen[dep.Module] = true
		edges = append(edges, dep.Module)
	}
	sort.Strings(edges)
	g.edges[module] = edges
}

// GetNode retrieves a node from the graph
func (g *DependencyGraph) GetNode(module string) *Node {
	return g.nodes[module]
}

// Modules returns every module in the graph, sorted by path.
func (g *DependencyGraph) Modules() []string {
	out := make([]string, 0, len(g.nodes))
	for m := range g.nodes {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// GetDependencies returns the direct dependencies declared by a module
func (g *DependencyGraph) GetDependencies(module string) []Dependency {
	node := g.GetNode(module)
	if node == nil {
		return nil
	}
	return node.Dependencies
}

// GetTransitiveDependencies returns every module reachable from module, each once.
func (g *DependencyGraph) GetTransitiveDependencies(module string) []Dependency {
	visited := map[string]bool{module: true}
	result := make([]Dependency, 0)

	var traverse func(string)
	traverse = func(mod string) {
		for _, dep := range g.edges[mod] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			result = append(result, Dependency{
				Module: dep,
				Type:   "transitive",
			})
			traverse(dep)
		}
	}

	traverse(module)
	return result
}

// GetDependents returns all modules that directly depend on module
func (g *DependencyGraph) GetDependents(module string) []Dependency {
	dependents := make([]Dependency, 0)

	for nodeKey, edges := range g.edges {
		for _, edge := range edges {
			if edge == module {
				dependents = append(dependents, Dependency{
					Module: nodeKey,
					Type:   "direct",
				})
				break
			}
		}
	}

	sort.Slice(dependents, func(i, j int) bool { return dependents[i].Module < dependents[j].Module })
	return dependents
}

// GetTransitiveDependents returns every module that reaches module, sorted by path.
func (g *DependencyGraph) GetTransitiveDependents(module string) []string {
	reverse := g.reverseEdges()
	visited := map[string]bool{module: true}
	queue := []string{module}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dependent := range reverse[cur] {
			if visited[dependent] {
				continue
			}
			visited[dependent] = true
			out = append(out, dependent)
			queue = append(queue, dependent)
		}
	}
	sort.Strings(out)
	return out
}

func (g *DependencyGraph) reverseEdges() map[string][]string {
	reverse := make(map[string][]string, len(g.edges))
	for from, edges := range g.edges {
		for _, to := range edges {
			reverse[to] = append(reverse[to], from)
		}
	}
	return reverse
}

// DetectCircularDependencies searches the whole graph for a cycle. It returns the
// cycle path, first module repeated at the end, and an error wrapping ErrCycle.
func (g *DependencyGraph) DetectCircularDependencies() ([]string, error) {
	const (
		unvisited = iota
		inStack
		done
	)
	state := make(map[string]int, len(g.nodes))
	path := make([]string, 0)

	var cycle []string
	var visit func(string) bool
	visit = func(key string) bool {
		state[key] = inStack
		path = append(path, key)

		for _, dep := range g.edges[key] {
			switch state[dep] {
			case unvisited:
				if visit(dep) {
					return true
				}
			case inStack:
				for i, p := range path {
					if p == dep {
						cycle = append(append([]string{}, path[i:]...), dep)
						break
					}
				}
				return true
			}
		}

		state[key] = done
		path = path[:len(path)-1]
		return false
	}

	for _, key := range g.Modules() {
		if state[key] == unvisited && visit(key) {
			return cycle, fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
		}
	}

	return nil, nil
}

// TopologicalSort orders all modules so that dependencies come before dependents.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	result := make([]string, 0, len(g.nodes))

	var visit func(string) error
	visit = func(key string) error {
		if recStack[key] {
			return fmt.Errorf("%w at %s", ErrCycle, key)
		}
		if visited[key] {
			return nil
		}

		visited[key] = true
		recStack[key] = true

		// Visit dependencies first
		for _, dep := range g.edges[key] {
			if err := visit(dep); err != nil {
				return err
			}
		}

		recStack[key] = false
		if _, ok := g.nodes[key]; ok {
			result = append(result, key)
		}
		return nil
	}

	for _, key := range g.Modules() {
		if err := visit(key); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// Depths returns, per module, the length of its longest dependency chain.
// Leaf modules have depth 0.
func (g *DependencyGraph) Depths() (map[string]int, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	depths := make(map[string]int, len(order))
	for _, module := range order {
		depth := 0
		for _, dep := range g.edges[module] {
			if d, ok := depths[dep]; ok && d+1 > depth {
				depth = d + 1
			}
		}
		depths[module] = depth
	}
	return depths, nil
}

// GetImpactAnalysis returns what would be affected by changes to this module
func (g *DependencyGraph) GetImpactAnalysis(module string) *ImpactAnalysis {
	directDependents := g.GetDependents(module)
	direct := make(map[string]bool, len(directDependents))
	for _, d := range directDependents {
		direct[d.Module] = true
	}

	allDependents := make([]Dependency, 0)
	for _, dependent := range g.GetTransitiveDependents(module) {
		if direct[dependent] {
			continue
		}
		allDependents = append(allDependents, Dependency{
			Module: dependent,
			Type:   "transitive",
		})
	}

	return &ImpactAnalysis{
		Module:               module,
		DirectDependents:     directDependents,
		TransitiveDependents: allDependents,
		TotalImpact:          len(directDependents) + len(allDependents),
	}
}

// ImpactAnalysis represents the impact of changes
type ImpactAnalysis struct {
	Module               string       `json:"module"`
	DirectDependents     []Dependency `json:"direct_dependents"`
	TransitiveDependents []Dependency `json:"transitive_dependents"`
	TotalImpact          int          `json:"total_impact"`
}
