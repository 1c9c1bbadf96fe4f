// Package workspace discovers the modules of a Gradle-style workspace and builds
// the project graph the linter runs against.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sirupsen/logrus"
	"github.com/viant/afs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/modcheck/pkg/descriptor"
	"github.com/platinummonkey/modcheck/pkg/project"
)

var tracer = otel.Tracer("modcheck/workspace")

// ErrNoModules is returned when no build descriptor was found under the root.
var ErrNoModules = errors.New("no modules found")

// DescriptorNames are the build descriptor file names, Kotlin DSL first.
var DescriptorNames = []string{"build.gradle.kts", "build.gradle"}

var skipDirs = map[string]struct{}{
	"build":        {},
	"buildSrc":     {},
	"out":          {},
	"node_modules": {},
	"src":          {},
}

// Loader reads a workspace from disk.
type Loader struct {
	fs              afs.Service
	analyzer        project.Analyzer
	hostToolVersion string
	log             logrus.FieldLogger
}

// Option configures a Loader.
type Option func(*Loader)

// WithFS reads and writes descriptors through fs.
func WithFS(fs afs.Service) Option {
	return func(l *Loader) { l.fs = fs }
}

// WithAnalyzer attaches the source front end to every loaded module.
func WithAnalyzer(a project.Analyzer) Option {
	return func(l *Loader) { l.analyzer = a }
}

// WithHostToolVersion sets the Android Gradle Plugin version assumed for modules
// whose descriptor does not declare one.
func WithHostToolVersion(v string) Option {
	return func(l *Loader) { l.hostToolVersion = v }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Loader) { l.log = log }
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{fs: afs.New(), log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load discovers every module under root. The root descriptor only becomes a
// module when it declares dependencies of its own.
func (l *Loader) Load(ctx context.Context, root string) (*project.Workspace, error) {
	ctx, span := tracer.Start(ctx, "workspace.Load")
	defer span.End()

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	span.SetAttributes(attribute.String("root", root))

	descriptors, err := Discover(root)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ws := project.NewWorkspace(root)
	for _, path := range descriptors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := l.LoadModule(ctx, root, path)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if m.Path == ":" && m.Dependencies.Len() == 0 {
			continue
		}
		ws.Add(m)
	}
	if ws.Len() == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoModules, root)
	}
	if err := ws.Validate(); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("modules", ws.Len()))
	l.log.WithFields(logrus.Fields{"root": root, "modules": ws.Len()}).Info("loaded workspace")
	return ws, nil
}

// LoadModule reads the module whose descriptor is at path.
func (l *Loader) LoadModule(ctx context.Context, root, path string) (*project.Module, error) {
	dir := filepath.Dir(path)
	desc := descriptor.NewFile(l.fs, path)
	parsed, err := desc.Parse(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor %s: %w", path, err)
	}

	m := project.NewModule(ModulePath(root, dir), dir, desc)
	for _, name := range sourceSetDirs(dir) {
		ensureSourceSet(m, name)
	}
	for _, s := range parsed.Statements() {
		dep := project.FromStatement(s)
		if ss := dep.Configuration.SourceSet(); ss != "" {
			ensureSourceSet(m, ss)
		}
		m.Dependencies.Add(dep)
	}

	m.Platform.HostToolVersion = l.hostToolVersion
	m.RefreshPlatform(parsed)
	if l.analyzer != nil {
		m.SetAnalyzer(l.analyzer)
	}

	l.log.WithFields(logrus.Fields{
		"module":       m.Path,
		"dependencies": m.Dependencies.Len(),
		"source_sets":  len(m.SourceSets),
		"android":      m.Platform.Android,
	}).Debug("loaded module")
	return m, nil
}

// ModulePath converts a module directory into its Gradle path, e.g. "feature/login"
// becomes ":feature:login" and the root becomes ":".
func ModulePath(root, dir string) string {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return ":"
	}
	return ":" + strings.ReplaceAll(filepath.ToSlash(rel), "/", ":")
}

// Discover returns the descriptor of every module directory under root, sorted.
// Hidden, build output and .gitignored directories are skipped.
func Discover(root string) ([]string, error) {
	var gi *ignore.GitIgnore
	if compiled, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		gi = compiled
	}

	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root {
			name := d.Name()
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			rel, err := filepath.Rel(root, path)
			if err == nil && gi != nil && (gi.MatchesPath(rel) || gi.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
		}
		for _, name := range DescriptorNames {
			candidate := filepath.Join(path, name)
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				out = append(out, candidate)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}

func sourceSetDirs(dir string) []project.SourceSetName {
	entries, err := os.ReadDir(filepath.Join(dir, "src"))
	if err != nil {
		return nil
	}
	var out []project.SourceSetName
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, project.SourceSetName(e.Name()))
		}
	}
	return out
}

// ensureSourceSet adds name and the source sets it inherits from.
func ensureSourceSet(m *project.Module, name project.SourceSetName) {
	if _, ok := m.SourceSet(name); ok {
		return
	}
	up := Upstream(name)
	for _, u := range up {
		ensureSourceSet(m, u)
	}
	m.AddSourceSet(&project.SourceSet{Name: name, Upstream: up})
}

// Upstream returns the source sets name inherits from: test, androidTest,
// testFixtures and variants build on main, and test<Variant> builds on test and
// the variant.
func Upstream(name project.SourceSetName) []project.SourceSetName {
	if name == project.Main || name == "" {
		return nil
	}
	for _, base := range []project.SourceSetName{project.AndroidTest, project.Test} {
		s := string(name)
		if name == base {
			return []project.SourceSetName{project.Main}
		}
		if rest := strings.TrimPrefix(s, string(base)); rest != s && rest != "" && unicode.IsUpper(rune(rest[0])) {
			if strings.HasPrefix(rest, "Fixtures") && base == project.Test {
				break
			}
			variant := project.SourceSetName(strings.ToLower(rest[:1]) + rest[1:])
			return []project.SourceSetName{base, variant}
		}
	}
	return []project.SourceSetName{project.Main}
}
