package rules

import (
	"context"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/platinummonkey/modcheck/pkg/descriptor"
	"github.com/platinummonkey/modcheck/pkg/finding"
	"github.com/platinummonkey/modcheck/pkg/linter"
	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/usage"
)

// Minimum host tool versions supporting each feature toggle.
const (
	ViewBindingMinVersion      = "4.0.0"
	AndroidResourcesMinVersion = "4.1.0"
)

// Feature flag names as written in buildFeatures.
const (
	FeatureViewBinding      = "viewBinding"
	FeatureAndroidResources = "androidResources"
)

// hostToolVersion returns the Android Gradle Plugin version for m: the descriptor's
// plugin version, then the module platform, then the settings fallback.
func hostToolVersion(parsed *descriptor.Parsed, m *project.Module, settings *linter.Settings) string {
	for _, v := range []string{parsed.AndroidVersion, m.Platform.HostToolVersion, settings.HostToolVersion} {
		if v != "" {
			return v
		}
	}
	return ""
}

// gate decides how a generated-feature finding is reported. ok is false when the
// host tool is known to predate the feature toggle.
func gate(version, minimum string) (kind finding.Kind, ok bool) {
	if version == "" {
		return finding.ReportOnly, true
	}
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return finding.ReportOnly, true
	}
	if semver.Compare(v, "v"+minimum) < 0 {
		return finding.Fixable, false
	}
	return finding.Fixable, true
}

type featureRule struct {
	BaseRule
	feature string
	minimum string
}

func (r *featureRule) featureFinding(parsed *descriptor.Parsed, m *project.Module, message string) []*finding.Finding {
	kind, ok := gate(hostToolVersion(parsed, m, r.settings), r.minimum)
	if !ok {
		return nil
	}
	f := r.newFinding(m, message)
	f.Kind = kind
	f.Feature = r.feature
	f.FeatureValue = false
	if flag, declared := parsed.Feature(r.feature); declared {
		f.Row, f.Column = flag.Row, 1
	}
	return []*finding.Finding{f}
}

// DisableViewBindingRule finds modules generating view binding classes nobody uses.
type DisableViewBindingRule struct {
	featureRule
}

// NewDisableViewBindingRule creates the view binding rule
func NewDisableViewBindingRule(resolver *usage.Resolver, settings *linter.Settings) *DisableViewBindingRule {
	return &DisableViewBindingRule{featureRule{
		BaseRule: newBaseRule(linter.RuleDisableViewBinding, finding.Fixable,
			"Finds modules with view binding enabled which do not use any generated binding class", resolver, settings),
		feature: FeatureViewBinding,
		minimum: ViewBindingMinVersion,
	}}
}

// Check flags enabled view binding when no generated binding class is referenced
// by the module or by any module depending on it.
func (r *DisableViewBindingRule) Check(ctx context.Context, m *project.Module) ([]*finding.Finding, error) {
	if !m.Platform.Android || !m.Platform.ViewBinding {
		return nil, nil
	}
	parsed, err := m.Descriptor.Parse(ctx)
	if err != nil {
		return nil, err
	}

	var bindings []string
	for _, ss := range m.SourceSetNames() {
		a, err := m.Analysis(ctx, ss)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, usage.BindingClasses(m, a.Layouts)...)
	}

	used, err := r.referencedAnywhere(ctx, m, bindings)
	if err != nil || used {
		return nil, err
	}
	return r.featureFinding(parsed, m, "View binding is enabled but no generated binding class is used."), nil
}

// DisableAndroidResourcesRule finds Android libraries generating an R class nobody uses.
type DisableAndroidResourcesRule struct {
	featureRule
}

// NewDisableAndroidResourcesRule creates the android resources rule
func NewDisableAndroidResourcesRule(resolver *usage.Resolver, settings *linter.Settings) *DisableAndroidResourcesRule {
	return &DisableAndroidResourcesRule{featureRule{
		BaseRule: newBaseRule(linter.RuleDisableAndroidResources, finding.Fixable,
			"Finds modules which have android resources R file generation enabled but don't use any resources from the module", resolver, settings),
		feature: FeatureAndroidResources,
		minimum: AndroidResourcesMinVersion,
	}}
}

// Check flags enabled resource generation when neither the module nor its
// dependents reference the R class, a declared resource or a binding class.
func (r *DisableAndroidResourcesRule) Check(ctx context.Context, m *project.Module) ([]*finding.Finding, error) {
	if !m.Platform.Android || !m.Platform.AndroidResources {
		return nil, nil
	}
	parsed, err := m.Descriptor.Parse(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]project.Declaration)
	if rClass := usage.RClass(m); rClass != "" {
		names[rClass] = project.Declaration{Name: rClass}
	}
	for _, ss := range m.SourceSetNames() {
		a, err := m.Analysis(ctx, ss)
		if err != nil {
			return nil, err
		}
		for n, d := range a.Declarations {
			if d.Kind == project.Resource {
				names[n] = d
			}
		}
		if m.Platform.ViewBinding {
			for _, b := range usage.BindingClasses(m, a.Layouts) {
				names[b] = project.Declaration{Name: b}
			}
		}
	}

	used, err := r.matchesAnywhere(ctx, m, names)
	if err != nil || used {
		return nil, err
	}
	return r.featureFinding(parsed, m, "Android resource generation is enabled but no resource of this module is used."), nil
}

func (r *featureRule) referencedAnywhere(ctx context.Context, m *project.Module, names []string) (bool, error) {
	decls := make(map[string]project.Declaration, len(names))
	for _, n := range names {
		decls[n] = project.Declaration{Name: n}
	}
	return r.matchesAnywhere(ctx, m, decls)
}

// matchesAnywhere checks every source set of m and of its dependents.
func (r *featureRule) matchesAnywhere(ctx context.Context, m *project.Module, decls map[string]project.Declaration) (bool, error) {
	if len(decls) == 0 {
		return false, nil
	}
	consumers := append([]*project.Module{m}, r.workspace().Dependents(m.Path)...)
	for _, c := range consumers {
		for _, ss := range c.SourceSetNames() {
			a, err := c.Analysis(ctx, ss)
			if err != nil {
				return false, err
			}
			if usage.ReferencesAny(a, decls) {
				return true, nil
			}
		}
	}
	return false, nil
}
