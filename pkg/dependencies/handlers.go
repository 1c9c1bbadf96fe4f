package dependencies

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/modcheck/pkg/httputil"
)

// GraphSource returns the current workspace graph.
type GraphSource func(ctx context.Context) (*DependencyGraph, error)

// DependencyHandlers provides HTTP handlers for dependencies
type DependencyHandlers struct {
	source GraphSource
}

// NewDependencyHandlers creates new dependency handlers
func NewDependencyHandlers(source GraphSource) *DependencyHandlers {
	return &DependencyHandlers{source: source}
}

// RegisterRoutes registers dependency routes. Module paths contain ':' and are
// passed in the module query parameter.
func (h *DependencyHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/modules", h.listModules).Methods("GET")
	router.HandleFunc("/v1/modules/dependencies", h.getDependencies).Methods("GET")
	router.HandleFunc("/v1/modules/dependents", h.getDependents).Methods("GET")
	router.HandleFunc("/v1/modules/impact", h.getImpact).Methods("GET")

	vizHandlers := NewGraphVisualizationHandlers(h.source)
	vizHandlers.RegisterRoutes(router)
}

func (h *DependencyHandlers) graphFor(w http.ResponseWriter, r *http.Request) (*DependencyGraph, string, bool) {
	graph, err := h.source(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return nil, "", false
	}
	module, err := httputil.RequireQuery(r, "module")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return nil, "", false
	}
	if graph.GetNode(module) == nil {
		httputil.WriteNotFoundError(w, "unknown module "+module)
		return nil, "", false
	}
	return graph, module, true
}

// listModules handles GET /v1/modules
func (h *DependencyHandlers) listModules(w http.ResponseWriter, r *http.Request) {
	graph, err := h.source(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	depths, err := graph.Depths()
	if err != nil {
		httputil.WriteConflict(w, err.Error())
		return
	}

	modules := make([]map[string]interface{}, 0, len(depths))
	for _, m := range graph.Modules() {
		modules = append(modules, map[string]interface{}{
			"module": m,
			"depth":  depths[m],
		})
	}
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"modules": modules,
		"count":   len(modules),
	})
}

// getDependencies handles GET /v1/modules/dependencies?module=:a&transitive=true
func (h *DependencyHandlers) getDependencies(w http.ResponseWriter, r *http.Request) {
	graph, module, ok := h.graphFor(w, r)
	if !ok {
		return
	}

	transitive, err := httputil.ParseQueryBool(r, "transitive", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	deps := graph.GetDependencies(module)
	if transitive {
		deps = graph.GetTransitiveDependencies(module)
	}

	_ = httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"module":       module,
		"dependencies": deps,
		"count":        len(deps),
	})
}

// getDependents handles GET /v1/modules/dependents?module=:a
func (h *DependencyHandlers) getDependents(w http.ResponseWriter, r *http.Request) {
	graph, module, ok := h.graphFor(w, r)
	if !ok {
		return
	}

	dependents := graph.GetDependents(module)
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"module":     module,
		"dependents": dependents,
		"count":      len(dependents),
	})
}

// getImpact handles GET /v1/modules/impact?module=:a
func (h *DependencyHandlers) getImpact(w http.ResponseWriter, r *http.Request) {
	graph, module, ok := h.graphFor(w, r)
	if !ok {
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, graph.GetImpactAnalysis(module))
}
