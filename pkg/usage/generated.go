package usage

import (
	"strings"
	"unicode"

	"github.com/platinummonkey/modcheck/pkg/project"
)

// BindingClassName returns the view binding class generated for a layout,
// e.g. "activity_main" becomes "ActivityMainBinding".
func BindingClassName(layout string) string {
	var b strings.Builder
	upper := true
	for _, r := range layout {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	b.WriteString("Binding")
	return b.String()
}

// BindingClasses returns the fully qualified binding classes a module generates from layouts.
func BindingClasses(m *project.Module, layouts []string) []string {
	pkg := m.Platform.Namespace
	out := make([]string, 0, len(layouts))
	for _, l := range layouts {
		name := BindingClassName(l)
		if pkg != "" {
			name = pkg + ".databinding." + name
		}
		out = append(out, name)
	}
	return out
}

// RClass returns the fully qualified R class of an Android module, or "" when the
// namespace is unknown.
func RClass(m *project.Module) string {
	if m.Platform.Namespace == "" {
		return ""
	}
	return m.Platform.Namespace + ".R"
}
