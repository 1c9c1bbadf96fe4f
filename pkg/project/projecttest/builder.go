// Package projecttest builds small on-disk workspaces for tests.
package projecttest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/modcheck/pkg/descriptor"
	"github.com/platinummonkey/modcheck/pkg/project"
)

// Builder assembles a workspace whose modules have real descriptors under a temp dir
// and canned source analyses.
type Builder struct {
	t       testing.TB
	root    string
	modules []*ModuleBuilder
}

// New creates a builder rooted at t.TempDir().
func New(t testing.TB) *Builder {
	return &Builder{t: t, root: t.TempDir()}
}

// Root returns the workspace directory.
func (b *Builder) Root() string { return b.root }

// ModuleBuilder describes one module.
type ModuleBuilder struct {
	path       string
	deps       []project.Dependency
	sourceSets []*project.SourceSet
	analyses   map[project.SourceSetName]*project.Analysis
	files      map[project.SourceSetName]int
	platform   project.Platform
	text       string
	groovy     bool
	plugins    []string
}

// Module adds a module at path such as ":core".
func (b *Builder) Module(path string) *ModuleBuilder {
	m := &ModuleBuilder{
		path:     path,
		analyses: make(map[project.SourceSetName]*project.Analysis),
		files:    make(map[project.SourceSetName]int),
	}
	b.modules = append(b.modules, m)
	return m
}

// Api declares an exposed project dependency.
func (m *ModuleBuilder) Api(path string) *ModuleBuilder {
	return m.Dependency(project.API, path)
}

// Implementation declares a hidden project dependency.
func (m *ModuleBuilder) Implementation(path string) *ModuleBuilder {
	return m.Dependency(project.Implementation, path)
}

// Dependency declares a project dependency in cfg.
func (m *ModuleBuilder) Dependency(cfg project.ConfigurationName, path string) *ModuleBuilder {
	m.deps = append(m.deps, project.ProjectDependency(cfg, path, false))
	return m
}

// TestFixtures declares a dependency on path's test fixtures.
func (m *ModuleBuilder) TestFixtures(cfg project.ConfigurationName, path string) *ModuleBuilder {
	m.deps = append(m.deps, project.ProjectDependency(cfg, path, true))
	return m
}

// External declares an artifact dependency given as group:artifact[:version].
func (m *ModuleBuilder) External(cfg project.ConfigurationName, coordinates string) *ModuleBuilder {
	d := project.Dependency{Configuration: cfg, Coordinates: coordinates}
	if parts := strings.SplitN(coordinates, ":", 3); len(parts) == 3 {
		d.Coordinates = parts[0] + ":" + parts[1]
		d.Version = parts[2]
	}
	m.deps = append(m.deps, d)
	return m
}

// SourceSet adds a source set inheriting from upstream.
func (m *ModuleBuilder) SourceSet(name project.SourceSetName, upstream ...project.SourceSetName) *ModuleBuilder {
	m.sourceSets = append(m.sourceSets, &project.SourceSet{Name: name, Upstream: upstream})
	return m
}

func (m *ModuleBuilder) analysis(ss project.SourceSetName) *project.Analysis {
	a, ok := m.analyses[ss]
	if !ok {
		a = project.NewAnalysis(ss)
		m.analyses[ss] = a
	}
	return a
}

// Declares adds public declarations to ss.
func (m *ModuleBuilder) Declares(ss project.SourceSetName, names ...string) *ModuleBuilder {
	a := m.analysis(ss)
	for _, n := range names {
		kind := project.Symbol
		if strings.HasPrefix(n, "R.") {
			kind = project.Resource
		}
		a.Declare(project.Declaration{Name: n, Kind: kind})
	}
	return m
}

// References adds explicit references to ss. Names starting with R. are resource references.
func (m *ModuleBuilder) References(ss project.SourceSetName, names ...string) *ModuleBuilder {
	return m.refer(ss, false, names)
}

// APIReferences adds references that appear in public signatures of ss.
func (m *ModuleBuilder) APIReferences(ss project.SourceSetName, names ...string) *ModuleBuilder {
	return m.refer(ss, true, names)
}

func (m *ModuleBuilder) refer(ss project.SourceSetName, api bool, names []string) *ModuleBuilder {
	a := m.analysis(ss)
	for _, n := range names {
		kind := project.Explicit
		if strings.Contains(n, "R.") {
			kind = project.ResourceRef
		}
		a.AddReference(project.Reference{Name: n, Kind: kind, API: api})
	}
	return m
}

// Contributes records a DI binding contribution into scope from ss.
func (m *ModuleBuilder) Contributes(ss project.SourceSetName, scope string) *ModuleBuilder {
	m.analysis(ss).Contributions[scope] = true
	return m
}

// Merges records that ss assembles the bindings of scope.
func (m *ModuleBuilder) Merges(ss project.SourceSetName, scope string) *ModuleBuilder {
	m.analysis(ss).Merges[scope] = true
	return m
}

// Layouts adds layout resources to ss.
func (m *ModuleBuilder) Layouts(ss project.SourceSetName, names ...string) *ModuleBuilder {
	a := m.analysis(ss)
	a.Layouts = append(a.Layouts, names...)
	return m
}

// Files overrides the file count of ss. Source sets with any analysis default to one file.
func (m *ModuleBuilder) Files(ss project.SourceSetName, n int) *ModuleBuilder {
	m.files[ss] = n
	m.analysis(ss)
	return m
}

// Android marks the module as an Android library.
func (m *ModuleBuilder) Android(namespace, version string) *ModuleBuilder {
	m.platform.Android = true
	m.platform.AndroidResources = true
	m.platform.Namespace = namespace
	m.platform.HostToolVersion = version
	return m
}

// ViewBinding enables view binding.
func (m *ModuleBuilder) ViewBinding() *ModuleBuilder {
	m.platform.ViewBinding = true
	return m
}

// Kapt applies the kapt plugin.
func (m *ModuleBuilder) Kapt() *ModuleBuilder {
	m.platform.KaptApplied = true
	return m
}

// Plugins adds raw plugin statements.
func (m *ModuleBuilder) Plugins(statements ...string) *ModuleBuilder {
	m.plugins = append(m.plugins, statements...)
	return m
}

// Groovy writes a build.gradle descriptor instead of build.gradle.kts.
func (m *ModuleBuilder) Groovy() *ModuleBuilder {
	m.groovy = true
	return m
}

// Text replaces the generated descriptor. Declared dependencies still populate the model.
func (m *ModuleBuilder) Text(text string) *ModuleBuilder {
	m.text = text
	return m
}

func (m *ModuleBuilder) dir(root string) string {
	return filepath.Join(append([]string{root}, strings.Split(strings.Trim(m.path, ":"), ":")...)...)
}

func (m *ModuleBuilder) render() string {
	if m.text != "" {
		return m.text
	}
	kotlin := !m.groovy
	var b strings.Builder
	b.WriteString("plugins {\n")
	switch {
	case m.platform.Android && kotlin:
		b.WriteString("  id(\"com.android.library\")")
		if m.platform.HostToolVersion != "" {
			b.WriteString(" version \"" + m.platform.HostToolVersion + "\"")
		}
		b.WriteString("\n")
	case m.platform.Android:
		b.WriteString("  id 'com.android.library'\n")
	case kotlin:
		b.WriteString("  `java-library`\n")
	default:
		b.WriteString("  id 'java-library'\n")
	}
	if m.platform.KaptApplied {
		if kotlin {
			b.WriteString("  kotlin(\"kapt\")\n")
		} else {
			b.WriteString("  id 'kotlin-kapt'\n")
		}
	}
	for _, p := range m.plugins {
		b.WriteString("  " + p + "\n")
	}
	b.WriteString("}\n")

	if m.platform.Android {
		b.WriteString("\nandroid {\n")
		if m.platform.Namespace != "" {
			b.WriteString("  namespace = \"" + m.platform.Namespace + "\"\n")
		}
		if m.platform.ViewBinding {
			b.WriteString("  buildFeatures {\n    " + descriptor.FeatureDeclaration(kotlin, "viewBinding", true) + "\n  }\n")
		}
		b.WriteString("}\n")
	}

	if len(m.deps) > 0 {
		b.WriteString("\ndependencies {\n")
		for _, d := range m.deps {
			var decl string
			if d.IsProject() {
				decl = descriptor.ProjectDeclaration(kotlin, string(d.Configuration), d.Path, d.TestFixture)
			} else {
				coordinates := d.Coordinates
				if d.Version != "" {
					coordinates += ":" + d.Version
				}
				decl = descriptor.ExternalDeclaration(kotlin, string(d.Configuration), coordinates)
			}
			b.WriteString(descriptor.Surround(descriptor.DefaultIndent, decl))
		}
		b.WriteString("}\n")
	}
	return b.String()
}

// Build writes every descriptor and returns the workspace.
func (b *Builder) Build() *project.Workspace {
	b.t.Helper()
	ws := project.NewWorkspace(b.root)
	for _, mb := range b.modules {
		dir := mb.dir(b.root)
		require.NoError(b.t, os.MkdirAll(dir, 0o755))
		name := "build.gradle.kts"
		if mb.groovy {
			name = "build.gradle"
		}
		file := filepath.Join(dir, name)
		require.NoError(b.t, os.WriteFile(file, []byte(mb.render()), 0o644))

		m := project.NewModule(mb.path, dir, descriptor.NewFile(nil, file))
		for _, ss := range mb.sourceSets {
			m.AddSourceSet(ss)
		}
		for ss := range mb.analyses {
			if _, ok := m.SourceSet(ss); !ok {
				up := []project.SourceSetName{project.Main}
				if ss == project.Main {
					up = nil
				}
				m.AddSourceSet(&project.SourceSet{Name: ss, Upstream: up})
			}
		}
		for _, d := range mb.deps {
			m.Dependencies.Add(d)
		}
		m.Platform = mb.platform

		analyses := mb.analyses
		files := mb.files
		m.SetAnalyzer(project.AnalyzerFunc(func(_ context.Context, _ *project.Module, ss project.SourceSetName) (*project.Analysis, error) {
			a, ok := analyses[ss]
			if !ok {
				return project.NewAnalysis(ss), nil
			}
			out := project.NewAnalysis(ss)
			out.Merge(a)
			out.Files = 1
			if n, ok := files[ss]; ok {
				out.Files = n
			}
			return out, nil
		}))
		ws.Add(m)
	}
	return ws
}

// ReadDescriptor returns the descriptor text of the module at path.
func ReadDescriptor(t testing.TB, ws *project.Workspace, path string) string {
	t.Helper()
	m, ok := ws.Module(path)
	require.True(t, ok, "module %s", path)
	data, err := os.ReadFile(m.Descriptor.Path())
	require.NoError(t, err)
	return string(data)
}
