package rules

import (
	"context"
	"fmt"

	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/memo"
	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/usage"
)

// ProjectDepthRule reports the depth of every module in the dependency graph.
type ProjectDepthRule struct {
	BaseRule
	depths *memo.Cell[map[string]int]
}

// NewProjectDepthRule creates the depth report rule. Depths are computed once per rule instance.
func NewProjectDepthRule(resolver *usage.Resolver, settings *linter.Settings) *ProjectDepthRule {
	r := &ProjectDepthRule{
		BaseRule: newBaseRule(linter.RuleProjectDepth, finding.ReportOnly,
			"Reports the longest path from each module to a module without project dependencies", resolver, settings),
	}
	r.depths = memo.NewCell(func(context.Context) (map[string]int, error) {
		return r.workspace().Graph().Depths()
	})
	return r
}

// Check reports the module's depth.
func (r *ProjectDepthRule) Check(ctx context.Context, m *project.Module) ([]*finding.Finding, error) {
	depths, err := r.depths.Get(ctx)
	if err != nil {
		return nil, err
	}
	depth, ok := depths[m.Path]
	if !ok {
		return nil, nil
	}
	return []*finding.Finding{r.newFinding(m, fmt.Sprintf("depth %d", depth))}, nil
}
