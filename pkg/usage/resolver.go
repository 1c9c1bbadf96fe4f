// Package usage decides whether a declared dependency is used by its consumer.
package usage

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modcheck/pkg/project"
)

// Resolver answers usage questions against a workspace. It only reads the model
// and the modules' memoized analyses, so it is safe for concurrent use.
type Resolver struct {
	ws         *project.Workspace
	generators CodeGenerators
	log        logrus.FieldLogger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCodeGenerators replaces the code generator catalogue.
func WithCodeGenerators(g CodeGenerators) Option {
	return func(r *Resolver) { r.generators = g }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Resolver) { r.log = log }
}

// New creates a resolver for ws.
func New(ws *project.Workspace, opts ...Option) *Resolver {
	r := &Resolver{ws: ws, generators: NewCodeGenerators(), log: logrus.New()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Workspace returns the workspace the resolver reads.
func (r *Resolver) Workspace() *project.Workspace { return r.ws }

// CodeGenerators returns the generator catalogue.
func (r *Resolver) CodeGenerators() CodeGenerators { return r.generators }

// IsUsed reports whether code in subject's source set ss uses dep.
//
// External artifacts are not analyzed and always count as used, except for code
// generators with a known trigger annotation. Dependencies on modules missing from
// the workspace count as used.
func (r *Resolver) IsUsed(ctx context.Context, subject *project.Module, ss project.SourceSetName, dep project.Dependency) (bool, error) {
	if dep.Configuration.IsCodeGen() {
		return r.usesCodeGenerator(ctx, subject, ss, dep)
	}
	if !dep.IsProject() {
		return true, nil
	}
	target, ok := r.ws.Module(dep.Path)
	if !ok {
		r.log.WithFields(logrus.Fields{
			"module":     subject.Path,
			"dependency": dep.Path,
		}).Debug("dependency target is not part of the workspace")
		return true, nil
	}
	return r.Uses(ctx, subject, ss, target, dep.TestFixture)
}

// Uses reports whether consumer's source set ss references anything target offers,
// falling back to the dependency-injection scope check.
func (r *Resolver) Uses(ctx context.Context, consumer *project.Module, ss project.SourceSetName, target *project.Module, fixtures bool) (bool, error) {
	refs, err := consumer.Analysis(ctx, ss)
	if err != nil {
		return false, err
	}
	if refs.Files == 0 {
		return false, nil
	}

	decls, err := r.Declarations(ctx, target, fixtures)
	if err != nil {
		return false, err
	}
	if ReferencesAny(refs, decls) {
		return true, nil
	}

	return r.usesScope(ctx, consumer, ss, target)
}

// Declarations returns the non-private declarations target offers its consumers:
// the main source set, or the test fixtures and everything upstream of them.
// Generated R and view binding classes are included.
func (r *Resolver) Declarations(ctx context.Context, target *project.Module, fixtures bool) (map[string]project.Declaration, error) {
	ss := project.Main
	if fixtures {
		ss = project.TestFixtures
	}
	out := make(map[string]project.Declaration)
	for _, name := range append([]project.SourceSetName{ss}, target.Upstream(ss)...) {
		a, err := target.Analysis(ctx, name)
		if err != nil {
			return nil, err
		}
		for n, d := range a.Declarations {
			if d.Visibility != project.Private {
				out[n] = d
			}
		}
		if target.Platform.ViewBinding {
			for _, class := range BindingClasses(target, a.Layouts) {
				out[class] = project.Declaration{Name: class}
			}
		}
	}
	if target.Platform.Android {
		if r := RClass(target); r != "" {
			out[r] = project.Declaration{Name: r}
		}
	}
	return out, nil
}

// ReferencesAny reports whether a references any of decls. Resource references
// only match resource declarations.
func ReferencesAny(a *project.Analysis, decls map[string]project.Declaration) bool {
	if len(decls) < len(a.References) {
		for name, d := range decls {
			if ref, ok := a.References[name]; ok && matches(ref, d) {
				return true
			}
		}
		return false
	}
	for name, ref := range a.References {
		if d, ok := decls[name]; ok && matches(ref, d) {
			return true
		}
	}
	return false
}

func matches(ref project.Reference, d project.Declaration) bool {
	return (ref.Kind == project.ResourceRef) == (d.Kind == project.Resource)
}

// usesScope treats the dependency as used when target contributes bindings to a
// scope that consumer's source set (or its upstream) merges. This is a best-effort
// allow-list match; generated wiring leaves no textual reference to check instead.
func (r *Resolver) usesScope(ctx context.Context, consumer *project.Module, ss project.SourceSetName, target *project.Module) (bool, error) {
	provided, err := target.Analysis(ctx, project.Main)
	if err != nil {
		return false, err
	}
	if len(provided.Contributions) == 0 {
		return false, nil
	}
	merged, err := r.MergedScopes(ctx, consumer, ss)
	if err != nil {
		return false, err
	}
	for scope := range provided.Contributions {
		if merged[scope] {
			return true, nil
		}
	}
	return false, nil
}

// MergedScopes returns the DI scopes assembled by ss and its upstream source sets.
func (r *Resolver) MergedScopes(ctx context.Context, m *project.Module, ss project.SourceSetName) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, name := range append([]project.SourceSetName{ss}, m.Upstream(ss)...) {
		a, err := m.Analysis(ctx, name)
		if err != nil {
			return nil, err
		}
		for scope := range a.Merges {
			out[scope] = true
		}
	}
	return out, nil
}

func (r *Resolver) usesCodeGenerator(ctx context.Context, subject *project.Module, ss project.SourceSetName, dep project.Dependency) (bool, error) {
	if dep.IsProject() {
		return true, nil
	}
	gen, ok := r.generators.Lookup(dep.Coordinates)
	if !ok {
		return true, nil
	}
	refs, err := subject.Analysis(ctx, ss)
	if err != nil {
		return false, err
	}
	for _, annotation := range gen.AnnotationNames {
		if refs.ReferencesName(annotation) {
			return true, nil
		}
	}
	return false, nil
}
