// Package dependencies models the project-to-project dependency graph of a workspace.
//
// # Overview
//
// Each node is a module path such as `:feature:login`; each edge is a project
// dependency declared in the module's build descriptor. The graph answers the
// questions the scheduler and the rules ask: which modules does a module reach,
// which modules reach it, how deep is it, and is the graph acyclic at all.
//
// # Key Features
//
// Graph Analysis: direct and transitive dependencies and dependents
// Cycle Detection: find the first cycle and report it as ErrCycle
// Depths: longest dependency chain per module, used for scheduling order
// Impact Analysis: show what modules would be affected by changes
// Visualization: Cytoscape.js JSON for the `graph` command and the HTTP API
//
// # Usage Example
//
//	graph := dependencies.NewDependencyGraph()
//	graph.AddNode(":app", []dependencies.Dependency{{Module: ":core", Configuration: "implementation"}})
//	graph.AddNode(":core", nil)
//
//	if cycle, err := graph.DetectCircularDependencies(); err != nil {
//		fmt.Println(strings.Join(cycle, " -> "))
//	}
//
//	depths, _ := graph.Depths() // map[:app:1 :core:0]
//
// # Related Packages
//
//   - pkg/project: builds the graph from a loaded workspace
//   - pkg/queue: orders module analysis by depth
package dependencies
