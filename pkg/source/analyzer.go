package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/modcheck/pkg/async"
	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/storage"
)

var tracer = otel.Tracer("modcheck/source")

// Source directories used when a source set does not list its own.
var (
	DefaultSourceRoots   = []string{"java", "kotlin"}
	DefaultResourceRoots = []string{"res"}
)

type fileKind int

const (
	kindJava fileKind = iota
	kindKotlin
	kindResource
)

type sourceFile struct {
	path string
	kind fileKind
}

// Analyzer implements project.Analyzer over Java, Kotlin and Android resource files.
type Analyzer struct {
	store   storage.Store
	workers int
	timeout time.Duration
	log     logrus.FieldLogger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithStore caches file analyses in s.
func WithStore(s storage.Store) Option {
	return func(a *Analyzer) { a.store = s }
}

// WithParseWorkers bounds the files parsed concurrently per source set.
func WithParseWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithParseTimeout bounds the time spent on a single file.
func WithParseTimeout(d time.Duration) Option {
	return func(a *Analyzer) { a.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Analyzer) { a.log = l }
}

// NewAnalyzer creates an analyzer. Without a store every file is parsed on each
// analysis.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		workers: runtime.NumCPU(),
		timeout: 30 * time.Second,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.store == nil {
		a.store = storage.NewNopStore()
	}
	return a
}

// Analyze parses every file of the source set. Files that cannot be read or
// parsed fail the analysis.
func (a *Analyzer) Analyze(ctx context.Context, m *project.Module, ss project.SourceSetName) (*project.Analysis, error) {
	ctx, span := tracer.Start(ctx, "source.Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("module", m.Path), attribute.String("source_set", string(ss)))

	out := project.NewAnalysis(ss)
	set, ok := m.SourceSet(ss)
	if !ok {
		return out, nil
	}

	files, err := collectFiles(m, set)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list sources of %s %s: %w", m.Path, ss, err)
	}

	results := make([]*storage.FileAnalysis, len(files))
	indices := make([]int, len(files))
	for i := range indices {
		indices[i] = i
	}
	errs := async.Batch(ctx, indices, a.workers, "analyze "+m.Path, a.timeout, func(ctx context.Context, i int) error {
		fa, err := a.analyzeFile(ctx, files[i])
		if err != nil {
			return err
		}
		results[i] = fa
		return nil
	})
	if len(errs) > 0 {
		err := errors.Join(errs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to analyze %s %s: %w", m.Path, ss, err)
	}

	for _, fa := range results {
		merge(out, fa)
	}
	out.Files = len(files)
	span.SetAttributes(attribute.Int("files", out.Files))
	a.log.WithFields(logrus.Fields{
		"module":       m.Path,
		"source_set":   ss,
		"files":        out.Files,
		"declarations": len(out.Declarations),
		"references":   len(out.References),
	}).Debug("analyzed source set")
	return out, nil
}

func (a *Analyzer) analyzeFile(ctx context.Context, f sourceFile) (*storage.FileAnalysis, error) {
	content, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}

	var language string
	switch f.kind {
	case kindJava:
		language = storage.LanguageJava
	case kindKotlin:
		language = storage.LanguageKotlin
	default:
		// resource analyses depend on the type directory and file name
		language = storage.LanguageResource + ":" + filepath.Base(filepath.Dir(f.path)) + "/" + filepath.Base(f.path)
	}
	key := storage.Key(language, content)

	if cached, err := a.store.Get(ctx, key); err == nil {
		return cached, nil
	} else if !errors.Is(err, storage.ErrCacheMiss) {
		a.log.WithError(err).WithField("file", f.path).Warn("analysis cache read failed")
	}

	var fa *storage.FileAnalysis
	switch f.kind {
	case kindJava:
		fa, err = ParseJava(ctx, content)
	case kindKotlin:
		fa, err = ParseKotlin(ctx, content)
	default:
		fa, err = ParseResource(f.path, content)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}

	if err := a.store.Set(ctx, key, fa); err != nil {
		a.log.WithError(err).WithField("file", f.path).Warn("analysis cache write failed")
	}
	return fa, nil
}

// merge folds a file analysis into a source set analysis. The first package seen
// becomes the source set's package.
func merge(out *project.Analysis, fa *storage.FileAnalysis) {
	if fa == nil {
		return
	}
	if out.Package == "" && fa.Package != "" {
		out.Package = fa.Package
	}
	for _, d := range fa.Declarations {
		out.Declare(d)
	}
	for _, r := range fa.References {
		out.AddReference(r)
	}
	for _, s := range fa.Contributions {
		out.Contributions[s] = true
	}
	for _, s := range fa.Merges {
		out.Merges[s] = true
	}
	out.Layouts = append(out.Layouts, fa.Layouts...)
}

// SourceDirs returns the code directories of a source set.
func SourceDirs(m *project.Module, set *project.SourceSet) []string {
	if len(set.SourceDirs) > 0 {
		return set.SourceDirs
	}
	dirs := make([]string, 0, len(DefaultSourceRoots))
	for _, root := range DefaultSourceRoots {
		dirs = append(dirs, filepath.Join(m.Dir, "src", string(set.Name), root))
	}
	return dirs
}

// ResourceDirs returns the Android resource directories of a source set.
func ResourceDirs(m *project.Module, set *project.SourceSet) []string {
	if len(set.ResourceDirs) > 0 {
		return set.ResourceDirs
	}
	dirs := make([]string, 0, len(DefaultResourceRoots))
	for _, root := range DefaultResourceRoots {
		dirs = append(dirs, filepath.Join(m.Dir, "src", string(set.Name), root))
	}
	return dirs
}

func collectFiles(m *project.Module, set *project.SourceSet) ([]sourceFile, error) {
	seen := make(map[string]bool)
	var files []sourceFile
	add := func(path string, kind fileKind) {
		if !seen[path] {
			seen[path] = true
			files = append(files, sourceFile{path: path, kind: kind})
		}
	}

	for _, dir := range SourceDirs(m, set) {
		err := walk(dir, func(path string) {
			switch strings.ToLower(filepath.Ext(path)) {
			case ".java":
				add(path, kindJava)
			case ".kt", ".kts":
				add(path, kindKotlin)
			}
		})
		if err != nil {
			return nil, err
		}
	}

	// resources only count when the module builds them
	if m.Platform.Android && m.Platform.AndroidResources {
		for _, dir := range ResourceDirs(m, set) {
			err := walk(dir, func(path string) {
				// only files directly inside a type directory are resources
				if filepath.Dir(filepath.Dir(path)) == filepath.Clean(dir) {
					add(path, kindResource)
				}
			})
			if err != nil {
				return nil, err
			}
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

// walk calls fn for each regular file under dir. A missing dir has no files.
func walk(dir string, fn func(path string)) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && !strings.HasPrefix(d.Name(), ".") {
			fn(path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
