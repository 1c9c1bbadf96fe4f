package project

import (
	"context"
	"strings"
)

// Visibility of a declaration outside its module.
type Visibility int

const (
	Public Visibility = iota
	Internal
	Private
)

func (v Visibility) String() string {
	switch v {
	case Internal:
		return "internal"
	case Private:
		return "private"
	default:
		return "public"
	}
}

// DeclarationKind separates code symbols from Android resources.
type DeclarationKind int

const (
	Symbol DeclarationKind = iota
	Resource
)

// Declaration is a named symbol produced by a source set.
type Declaration struct {
	Name       string          `json:"name"`
	Visibility Visibility      `json:"visibility"`
	Kind       DeclarationKind `json:"kind"`
}

// ReferenceKind tells how a reference was resolved.
type ReferenceKind int

const (
	// Explicit references are tied to an import or a fully qualified name.
	Explicit ReferenceKind = iota
	// Inferred references are guessed from wildcard imports or the current package.
	Inferred
	// ResourceRef references use the R.<type>.<name> namespace.
	ResourceRef
)

// Reference is a named symbol consumed by a source set.
type Reference struct {
	Name string        `json:"name"`
	Kind ReferenceKind `json:"kind"`
	// API marks references that appear in a public signature of the consumer.
	API bool `json:"api,omitempty"`
}

// ResourceName normalizes a resource reference to R.<type>.<name>, dropping any
// package qualifier before the R class.
func ResourceName(name string) string {
	if i := strings.LastIndex(name, "R."); i > 0 && name[i-1] == '.' {
		return name[i:]
	}
	return name
}

// Analysis is everything the source front end learned about one source set.
type Analysis struct {
	SourceSet SourceSetName
	Files     int
	Package   string

	Declarations map[string]Declaration
	References   map[string]Reference

	// Contributions are dependency-injection scope names this source set binds into.
	Contributions map[string]bool
	// Merges are scope names whose bindings this source set assembles.
	Merges map[string]bool

	// Layouts are layout resource names, used to derive generated view binding classes.
	Layouts []string
}

// NewAnalysis creates an empty analysis.
func NewAnalysis(ss SourceSetName) *Analysis {
	return &Analysis{
		SourceSet:     ss,
		Declarations:  make(map[string]Declaration),
		References:    make(map[string]Reference),
		Contributions: make(map[string]bool),
		Merges:        make(map[string]bool),
	}
}

// Declare records a declaration.
func (a *Analysis) Declare(d Declaration) {
	if d.Kind == Resource {
		d.Name = ResourceName(d.Name)
	}
	a.Declarations[d.Name] = d
}

// AddReference records a reference. An explicit reference replaces an inferred one,
// and API usage is sticky.
func (a *Analysis) AddReference(r Reference) {
	if r.Kind == ResourceRef {
		r.Name = ResourceName(r.Name)
	}
	if prev, ok := a.References[r.Name]; ok {
		if prev.Kind == Explicit {
			r.Kind = Explicit
		}
		r.API = r.API || prev.API
	}
	a.References[r.Name] = r
}

// ReferencesName reports whether name is referenced.
func (a *Analysis) ReferencesName(name string) bool {
	_, ok := a.References[name]
	return ok
}

// Merge folds other into a, used to combine a source set with its upstream.
func (a *Analysis) Merge(other *Analysis) {
	if other == nil {
		return
	}
	a.Files += other.Files
	for _, d := range other.Declarations {
		a.Declare(d)
	}
	for _, r := range other.References {
		a.AddReference(r)
	}
	for s := range other.Contributions {
		a.Contributions[s] = true
	}
	for s := range other.Merges {
		a.Merges[s] = true
	}
	a.Layouts = append(a.Layouts, other.Layouts...)
}

// Analyzer is the source-code front end.
type Analyzer interface {
	Analyze(ctx context.Context, m *Module, ss SourceSetName) (*Analysis, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, m *Module, ss SourceSetName) (*Analysis, error)

// Analyze calls f.
func (f AnalyzerFunc) Analyze(ctx context.Context, m *Module, ss SourceSetName) (*Analysis, error) {
	return f(ctx, m, ss)
}
