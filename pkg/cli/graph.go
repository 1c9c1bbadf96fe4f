package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/platinummonkey/modcheck/pkg/dependencies"
)

// newGraphCommand creates the graph command
func newGraphCommand(out io.Writer) *Command {
	fs := flag.NewFlagSet("graph", flag.ContinueOnError)
	var (
		common commonFlags
		format = fs.String("format", "text", "Output format: text or json (Cytoscape.js)")
		module = fs.String("module", "", "Show only this module's dependencies and dependents")
	)
	common.register(fs)

	return &Command{
		Name:        "graph",
		Description: "Print the project dependency graph",
		Flags:       fs,
		Out:         out,
		Run: func(ctx context.Context, args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}
			a, err := newApp(ctx, &common, nil)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			ws, err := a.loadWorkspace(ctx)
			if err != nil {
				return err
			}
			return printGraph(out, ws.Graph(), *format, *module)
		},
	}
}

func printGraph(out io.Writer, graph *dependencies.DependencyGraph, format, module string) error {
	if module != "" && graph.GetNode(module) == nil {
		return fmt.Errorf("unknown module %s", module)
	}
	depths, err := graph.Depths()
	if err != nil {
		return err
	}

	switch format {
	case "json":
		cyto := dependencies.WholeCytoscapeGraph(graph)
		if module != "" {
			cyto = dependencies.BuildCytoscapeGraph(graph, module, true, -1, "both")
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cyto)
	case "", "text":
	default:
		return fmt.Errorf("unknown graph format %q", format)
	}

	modules := graph.Modules()
	if module != "" {
		modules = []string{module}
	}
	for _, m := range modules {
		fmt.Fprintf(out, "%s (depth %d)\n", m, depths[m])
		for _, dep := range graph.GetDependencies(m) {
			fmt.Fprintf(out, "  -> %s [%s]\n", dep.Module, dep.Configuration)
		}
		if module != "" {
			dependents := make([]string, 0)
			for _, d := range graph.GetDependents(m) {
				dependents = append(dependents, d.Module)
			}
			if len(dependents) > 0 {
				fmt.Fprintf(out, "  <- %s\n", strings.Join(dependents, ", "))
			}
		}
	}
	return nil
}
