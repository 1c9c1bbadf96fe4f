package project

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/platinummonkey/modcheck/pkg/descriptor"
	"github.com/platinummonkey/modcheck/pkg/memo"
)

// ErrSourceSetCycle is returned when source sets inherit from each other in a loop.
var ErrSourceSetCycle = errors.New("source set cycle")

// SourceSet is a named code partition within a module.
type SourceSet struct {
	Name SourceSetName
	// Upstream source sets are inherited directly, e.g. test inherits main.
	Upstream     []SourceSetName
	SourceDirs   []string
	ResourceDirs []string
}

// Slot is a dependency configuration attached to a source set.
type Slot struct {
	Name      ConfigurationName
	SourceSet SourceSetName
	// Exposed slots leak their dependencies onto consumers' compile classpaths.
	Exposed bool
	Extends []ConfigurationName
}

// Platform carries module-level build features.
type Platform struct {
	Android          bool
	AndroidResources bool
	ViewBinding      bool
	Namespace        string
	// HostToolVersion is the Android Gradle Plugin version, empty when unknown.
	HostToolVersion string
	KaptApplied     bool
}

// Module is a compiled unit of the workspace.
type Module struct {
	Path       string
	Dir        string
	Descriptor *descriptor.File

	SourceSets   map[SourceSetName]*SourceSet
	Slots        map[ConfigurationName]*Slot
	Dependencies *DependencySet
	Platform     Platform

	cache    *memo.Map[SourceSetName, *Analysis]
	writeSem chan struct{}
}

// NewModule creates a module with a main source set and its slots.
func NewModule(path, dir string, desc *descriptor.File) *Module {
	m := &Module{
		Path:         path,
		Dir:          dir,
		Descriptor:   desc,
		SourceSets:   make(map[SourceSetName]*SourceSet),
		Slots:        make(map[ConfigurationName]*Slot),
		Dependencies: NewDependencySet(),
		writeSem:     make(chan struct{}, 1),
	}
	m.AddSourceSet(&SourceSet{Name: Main})
	m.SetAnalyzer(nil)
	return m
}

// AddSourceSet registers ss and creates its slots. Testing-only source sets get no api slot.
func (m *Module) AddSourceSet(ss *SourceSet) {
	m.SourceSets[ss.Name] = ss
	for _, base := range BaseConfigs {
		if base == API && ss.Name.IsTestingOnly() {
			continue
		}
		cfg := ss.Name.Config(base)
		slot := &Slot{Name: cfg, SourceSet: ss.Name, Exposed: base == API}
		if base == Implementation && !ss.Name.IsTestingOnly() {
			slot.Extends = append(slot.Extends, ss.Name.APIConfig())
		}
		for _, up := range ss.Upstream {
			slot.Extends = append(slot.Extends, up.Config(base))
		}
		m.Slots[cfg] = slot
	}
}

// SourceSet returns the named source set.
func (m *Module) SourceSet(name SourceSetName) (*SourceSet, bool) {
	ss, ok := m.SourceSets[name]
	return ss, ok
}

// SourceSetNames returns main first, then the others sorted.
func (m *Module) SourceSetNames() []SourceSetName {
	names := make([]SourceSetName, 0, len(m.SourceSets))
	for n := range m.SourceSets {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i] == Main || names[j] == Main {
			return names[i] == Main && names[j] != Main
		}
		return names[i] < names[j]
	})
	return names
}

// Upstream returns every source set ss inherits from, nearest first.
func (m *Module) Upstream(ss SourceSetName) []SourceSetName {
	var out []SourceSetName
	seen := map[SourceSetName]bool{ss: true}
	queue := []SourceSetName{ss}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		set, ok := m.SourceSets[cur]
		if !ok {
			continue
		}
		for _, up := range set.Upstream {
			if !seen[up] {
				seen[up] = true
				out = append(out, up)
				queue = append(queue, up)
			}
		}
	}
	return out
}

// Downstream returns every source set that inherits from ss, sorted.
func (m *Module) Downstream(ss SourceSetName) []SourceSetName {
	var out []SourceSetName
	for _, name := range m.SourceSetNames() {
		if name == ss {
			continue
		}
		for _, up := range m.Upstream(name) {
			if up == ss {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// ValidateSourceSets checks that the upstream relation is acyclic.
func (m *Module) ValidateSourceSets() error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[SourceSetName]int)
	var visit func(SourceSetName) error
	visit = func(n SourceSetName) error {
		switch state[n] {
		case visiting:
			return fmt.Errorf("%w in %s at %s", ErrSourceSetCycle, m.Path, n)
		case done:
			return nil
		}
		state[n] = visiting
		if ss, ok := m.SourceSets[n]; ok {
			for _, up := range ss.Upstream {
				if err := visit(up); err != nil {
					return err
				}
			}
		}
		state[n] = done
		return nil
	}
	for _, n := range m.SourceSetNames() {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

// Slot returns the named slot, if the module has it.
func (m *Module) Slot(cfg ConfigurationName) (*Slot, bool) {
	s, ok := m.Slots[cfg]
	return s, ok
}

// IsExposed reports whether dependencies in cfg are visible to consumers.
func (m *Module) IsExposed(cfg ConfigurationName) bool {
	if s, ok := m.Slots[cfg]; ok {
		return s.Exposed
	}
	return cfg.IsAPI()
}

// SetAnalyzer installs the source front end and drops any cached analysis.
func (m *Module) SetAnalyzer(a Analyzer) {
	if m.cache != nil {
		m.cache.Clear()
	}
	m.cache = memo.NewMap(func(ctx context.Context, ss SourceSetName) (*Analysis, error) {
		if a == nil {
			return NewAnalysis(ss), nil
		}
		if _, ok := m.SourceSets[ss]; !ok {
			return NewAnalysis(ss), nil
		}
		return a.Analyze(ctx, m, ss)
	})
}

// Analysis returns the memoized analysis of ss, computing it on first use.
func (m *Module) Analysis(ctx context.Context, ss SourceSetName) (*Analysis, error) {
	return m.cache.Get(ctx, ss)
}

// ClearCache drops every memoized analysis of the module.
func (m *Module) ClearCache() { m.cache.Clear() }

// CachedSourceSets returns how many source sets currently hold a memoized analysis.
func (m *Module) CachedSourceSets() int { return m.cache.Len() }

// Lock acquires the module's descriptor write lock, giving up when ctx is done.
func (m *Module) Lock(ctx context.Context) error {
	select {
	case m.writeSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases the descriptor write lock.
func (m *Module) Unlock() { <-m.writeSem }

func (m *Module) String() string { return m.Path }

// Plugin ids that identify platform features.
const (
	KaptPluginID           = "org.jetbrains.kotlin.kapt"
	AndroidLibraryPluginID = "com.android.library"
	AndroidAppPluginID     = "com.android.application"
)

// KaptPluginIDs lists every id the kapt plugin is applied with.
var KaptPluginIDs = []string{KaptPluginID, "kotlin-kapt"}

// RefreshPlatform derives the module's build features from its parsed descriptor.
// Values the descriptor does not mention keep their platform defaults.
func (m *Module) RefreshPlatform(parsed *descriptor.Parsed) {
	p := Platform{
		Android:         parsed.HasPlugin(AndroidLibraryPluginID, AndroidAppPluginID),
		Namespace:       parsed.Namespace,
		HostToolVersion: parsed.AndroidVersion,
		KaptApplied:     parsed.HasPlugin(KaptPluginIDs...),
	}
	if p.Namespace == "" {
		p.Namespace = m.Platform.Namespace
	}
	if p.HostToolVersion == "" {
		p.HostToolVersion = m.Platform.HostToolVersion
	}
	p.AndroidResources = p.Android
	if f, ok := parsed.Feature("androidResources"); ok {
		p.AndroidResources = p.Android && f.Enabled
	}
	if f, ok := parsed.Feature("viewBinding"); ok {
		p.ViewBinding = p.Android && f.Enabled
	}
	m.Platform = p
}
