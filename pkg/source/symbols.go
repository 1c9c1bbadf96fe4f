package source

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/storage"
)

var (
	contributeAnnotations = map[string]bool{
		"ContributesTo":           true,
		"ContributesBinding":      true,
		"ContributesMultibinding": true,
		"ContributesSubcomponent": true,
	}
	mergeAnnotations = map[string]bool{
		"MergeComponent":    true,
		"MergeSubcomponent": true,
		"MergeModules":      true,
		"MergeInterfaces":   true,
	}

	kotlinClassArgRe = regexp.MustCompile(`([A-Za-z_][\w.]*)::class`)
	javaClassArgRe   = regexp.MustCompile(`([A-Za-z_][\w.]*)\.class\b`)
	resourceRe       = regexp.MustCompile(`(?:^|\.)R\.(\w+)\.(\w+)`)
	qualifiedRe      = regexp.MustCompile(`^[A-Za-z_][\w]*(?:\.[A-Za-z_][\w]*)*`)
)

// collector accumulates the symbols of one file.
type collector struct {
	language  string
	pkg       string
	imports   map[string]string
	wildcards []string
	analysis  *project.Analysis
}

func newCollector(language string) *collector {
	return &collector{
		language: language,
		imports:  make(map[string]string),
		analysis: project.NewAnalysis(""),
	}
}

func isUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}

func join(owner, name string) string {
	if owner == "" {
		return name
	}
	return owner + "." + name
}

// addImport records an import of a class, member or package wildcard.
func (c *collector) addImport(path, alias string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	if strings.HasSuffix(path, ".*") {
		pkg := strings.TrimSuffix(path, ".*")
		c.wildcards = append(c.wildcards, pkg)
		if last := pkg[strings.LastIndexByte(pkg, '.')+1:]; isUpper(last) {
			c.explicit(pkg, false)
		}
		return
	}
	if alias == "" {
		alias = path[strings.LastIndexByte(path, '.')+1:]
	}
	c.imports[alias] = path
	c.qualified(path, false)
}

func (c *collector) declare(name string, visibility project.Visibility) {
	if name == "" {
		return
	}
	c.analysis.Declare(project.Declaration{Name: name, Visibility: visibility})
}

func (c *collector) explicit(name string, api bool) {
	c.analysis.AddReference(project.Reference{Name: name, Kind: project.Explicit, API: api})
}

func (c *collector) inferred(name string, api bool) {
	c.analysis.AddReference(project.Reference{Name: name, Kind: project.Inferred, API: api})
}

// resolve returns the fully qualified name of a simple name, or "" when the name
// is not imported.
func (c *collector) resolve(simple string) string {
	return c.imports[simple]
}

// typeRef records a reference to a simple name.
func (c *collector) typeRef(simple string, api bool) {
	if simple == "" {
		return
	}
	if fq := c.resolve(simple); fq != "" {
		c.explicit(fq, api)
		return
	}
	if c.pkg != "" {
		c.inferred(c.pkg+"."+simple, api)
	}
	for _, w := range c.wildcards {
		c.inferred(w+"."+simple, api)
	}
}

// qualified records a dotted name. A leading imported or capitalized segment is
// resolved like a simple name; otherwise the name is taken as fully qualified and
// every prefix ending in a capitalized segment is referenced.
func (c *collector) qualified(name string, api bool) {
	segments := strings.Split(name, ".")
	if len(segments) == 1 {
		c.typeRef(name, api)
		return
	}
	first := segments[0]
	if fq := c.resolve(first); fq != "" {
		c.explicit(fq, api)
		c.explicit(fq+"."+strings.Join(segments[1:], "."), api)
		return
	}
	if isUpper(first) {
		c.typeRef(first, api)
		if c.pkg != "" {
			c.inferred(c.pkg+"."+name, api)
		}
		return
	}
	found := false
	for i := 1; i < len(segments); i++ {
		if isUpper(segments[i]) {
			c.explicit(strings.Join(segments[:i+1], "."), api)
			found = true
		}
	}
	if found && !isUpper(segments[len(segments)-1]) {
		c.explicit(name, api)
	}
}

// expression records a dotted expression such as R.string.title or Foo.bar().
func (c *collector) expression(text string) {
	text = qualifiedRe.FindString(strings.Join(strings.Fields(text), ""))
	if text == "" {
		return
	}
	if loc := resourceRe.FindStringSubmatchIndex(text); loc != nil {
		c.analysis.AddReference(project.Reference{
			Name: "R." + text[loc[2]:loc[3]] + "." + text[loc[4]:loc[5]],
			Kind: project.ResourceRef,
		})
		if prefix := text[:loc[0]]; prefix != "" {
			c.explicit(prefix+".R", false)
		} else {
			c.typeRef("R", false)
		}
		return
	}
	segments := strings.Split(text, ".")
	if len(segments) == 1 {
		return
	}
	if c.resolve(segments[0]) != "" || isUpper(segments[0]) {
		c.qualified(text, false)
		return
	}
	for _, s := range segments[1:] {
		if isUpper(s) {
			c.qualified(text, false)
			return
		}
	}
}

// annotation records the annotation type and any DI scope it names.
func (c *collector) annotation(name, args string) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "@")
	if name == "" {
		return
	}
	c.qualified(name, false)

	simple := name[strings.LastIndexByte(name, '.')+1:]
	contributes, merges := contributeAnnotations[simple], mergeAnnotations[simple]
	if !contributes && !merges {
		return
	}
	re := kotlinClassArgRe
	if c.language == "java" {
		re = javaClassArgRe
	}
	for _, m := range re.FindAllStringSubmatch(args, -1) {
		scope := c.scopeName(m[1])
		if contributes {
			c.analysis.Contributions[scope] = true
		}
		if merges {
			c.analysis.Merges[scope] = true
		}
	}
}

func (c *collector) scopeName(name string) string {
	segments := strings.Split(name, ".")
	if fq := c.resolve(segments[0]); fq != "" {
		return strings.Join(append([]string{fq}, segments[1:]...), ".")
	}
	if isUpper(segments[0]) && c.pkg != "" {
		return c.pkg + "." + name
	}
	return name
}

// result converts the collected symbols into a cacheable file analysis.
func (c *collector) result() *storage.FileAnalysis {
	out := &storage.FileAnalysis{Language: c.language, Package: c.pkg}
	for _, d := range c.analysis.Declarations {
		out.Declarations = append(out.Declarations, d)
	}
	sort.Slice(out.Declarations, func(i, j int) bool { return out.Declarations[i].Name < out.Declarations[j].Name })
	for _, r := range c.analysis.References {
		out.References = append(out.References, r)
	}
	sort.Slice(out.References, func(i, j int) bool { return out.References[i].Name < out.References[j].Name })
	out.Contributions = sortedKeys(c.analysis.Contributions)
	out.Merges = sortedKeys(c.analysis.Merges)
	out.Layouts = append(out.Layouts, c.analysis.Layouts...)
	return out
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// visibilityOf reads a modifier list. Kotlin defaults to public and Java to
// package-private, which is reported as internal.
func visibilityOf(modifiers string, java bool) project.Visibility {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(modifiers, func(r rune) bool { return !unicode.IsLetter(r) }) {
		words[w] = true
	}
	switch {
	case words["private"]:
		return project.Private
	case words["internal"]:
		return project.Internal
	case java && !words["public"] && !words["protected"]:
		return project.Internal
	}
	return project.Public
}

func (c *collector) declareResource(name string) {
	c.analysis.Declare(project.Declaration{Name: name, Kind: project.Resource})
}

func (c *collector) resourceRef(name string) {
	c.analysis.AddReference(project.Reference{Name: name, Kind: project.ResourceRef})
}
