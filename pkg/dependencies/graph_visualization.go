package dependencies

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/modcheck/pkg/httputil"
)

// CytoscapeNode represents a node in Cytoscape.js format
type CytoscapeNode struct {
	Data CytoscapeNodeData `json:"data"`
}

// CytoscapeNodeData contains node data for Cytoscape.js
type CytoscapeNodeData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Depth int    `json:"depth"`
	Type  string `json:"type"` // "current", "dependency", "dependent", "module"
}

// CytoscapeEdge represents an edge in Cytoscape.js format
type CytoscapeEdge struct {
	Data CytoscapeEdgeData `json:"data"`
}

// CytoscapeEdgeData contains edge data for Cytoscape.js
type CytoscapeEdgeData struct {
	ID            string `json:"id"`
	Source        string `json:"source"`
	Target        string `json:"target"`
	Type          string `json:"type,omitempty"` // "direct", "transitive", "depends-on"
	Configuration string `json:"configuration,omitempty"`
}

// CytoscapeGraph represents the complete graph in Cytoscape.js format
type CytoscapeGraph struct {
	Nodes []CytoscapeNode `json:"nodes"`
	Edges []CytoscapeEdge `json:"edges"`
}

// WholeCytoscapeGraph renders every module and every declared edge.
func WholeCytoscapeGraph(graph *DependencyGraph) CytoscapeGraph {
	depths, _ := graph.Depths()
	cytoGraph := CytoscapeGraph{
		Nodes: make([]CytoscapeNode, 0),
		Edges: make([]CytoscapeEdge, 0),
	}
	for _, module := range graph.Modules() {
		cytoGraph.Nodes = append(cytoGraph.Nodes, CytoscapeNode{
			Data: CytoscapeNodeData{ID: module, Name: module, Depth: depths[module], Type: "module"},
		})
		for _, dep := range graph.GetDependencies(module) {
			cytoGraph.Edges = append(cytoGraph.Edges, CytoscapeEdge{
				Data: CytoscapeEdgeData{
					ID:            module + "->" + dep.Module + "#" + dep.Configuration,
					Source:        module,
					Target:        dep.Module,
					Type:          "direct",
					Configuration: dep.Configuration,
				},
			})
		}
	}
	return cytoGraph
}

// BuildCytoscapeGraph builds a Cytoscape.js compatible graph centred on module.
// direction is "dependencies", "dependents" or "both"; maxDepth < 0 is unlimited.
func BuildCytoscapeGraph(graph *DependencyGraph, module string, transitive bool, maxDepth int, direction string) CytoscapeGraph {
	depths, _ := graph.Depths()
	b := &cytoBuilder{graph: graph, depths: depths, visited: make(map[string]bool)}
	b.out = CytoscapeGraph{
		Nodes: make([]CytoscapeNode, 0),
		Edges: make([]CytoscapeEdge, 0),
	}

	b.addNode(module, "current")

	if direction == "dependencies" || direction == "both" {
		if transitive {
			b.addTransitiveDependencies(module, maxDepth, 0)
		} else {
			b.addTransitiveDependencies(module, 1, 0)
		}
	}

	if direction == "dependents" || direction == "both" {
		b.addDependents(module)
	}

	return b.out
}

type cytoBuilder struct {
	graph   *DependencyGraph
	depths  map[string]int
	visited map[string]bool
	out     CytoscapeGraph
}

func (b *cytoBuilder) addNode(module, nodeType string) bool {
	if b.visited[module] {
		return false
	}
	b.visited[module] = true
	b.out.Nodes = append(b.out.Nodes, CytoscapeNode{
		Data: CytoscapeNodeData{ID: module, Name: module, Depth: b.depths[module], Type: nodeType},
	})
	return true
}

// addTransitiveDependencies adds transitive dependencies recursively
func (b *cytoBuilder) addTransitiveDependencies(module string, maxDepth, currentDepth int) {
	if maxDepth >= 0 && currentDepth >= maxDepth {
		return
	}

	edgeType := "direct"
	if currentDepth > 0 {
		edgeType = "transitive"
	}
	for _, dep := range b.graph.GetDependencies(module) {
		if b.addNode(dep.Module, "dependency") {
			b.addTransitiveDependencies(dep.Module, maxDepth, currentDepth+1)
		}
		b.out.Edges = append(b.out.Edges, CytoscapeEdge{
			Data: CytoscapeEdgeData{
				ID:            module + "->" + dep.Module + "#" + dep.Configuration,
				Source:        module,
				Target:        dep.Module,
				Type:          edgeType,
				Configuration: dep.Configuration,
			},
		})
	}
}

// addDependents adds modules that depend on the current module
func (b *cytoBuilder) addDependents(module string) {
	for _, dependent := range b.graph.GetDependents(module) {
		b.addNode(dependent.Module, "dependent")
		b.out.Edges = append(b.out.Edges, CytoscapeEdge{
			Data: CytoscapeEdgeData{
				ID:     dependent.Module + "->" + module,
				Source: dependent.Module,
				Target: module,
				Type:   "depends-on",
			},
		})
	}
}

// GraphVisualizationHandlers provides HTTP handlers for graph visualization
type GraphVisualizationHandlers struct {
	source GraphSource
}

// NewGraphVisualizationHandlers creates new graph visualization handlers
func NewGraphVisualizationHandlers(source GraphSource) *GraphVisualizationHandlers {
	return &GraphVisualizationHandlers{source: source}
}

// RegisterRoutes registers graph visualization routes
func (h *GraphVisualizationHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/graph", h.getCytoscapeGraph).Methods("GET")
}

// getCytoscapeGraph handles GET /v1/graph
// Query parameters:
//   - module: centre the graph on this module path (default: whole workspace)
//   - transitive: include transitive dependencies (default: true)
//   - depth: max depth for transitive dependencies (default: unlimited)
//   - direction: "dependencies", "dependents", or "both" (default: "dependencies")
func (h *GraphVisualizationHandlers) getCytoscapeGraph(w http.ResponseWriter, r *http.Request) {
	graph, err := h.source(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	module := r.URL.Query().Get("module")
	if module == "" {
		_ = httputil.WriteJSON(w, http.StatusOK, WholeCytoscapeGraph(graph))
		return
	}
	if graph.GetNode(module) == nil {
		httputil.WriteNotFoundError(w, "unknown module "+module)
		return
	}

	transitive, err := httputil.ParseQueryBool(r, "transitive", true)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	maxDepth, err := httputil.ParseQueryInt(r, "depth", -1)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if maxDepth <= 0 {
		maxDepth = -1 // unlimited
	}

	direction, err := httputil.ParseQueryEnum(r, "direction", "dependencies", "dependencies", "dependents", "both")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	_ = httputil.WriteJSON(w, http.StatusOK, BuildCytoscapeGraph(graph, module, transitive, maxDepth, direction))
}
