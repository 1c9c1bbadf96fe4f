package project

import (
	"strings"
	"unicode"
)

// SourceSetName identifies a code partition such as main, test or debug.
type SourceSetName string

const (
	Main         SourceSetName = "main"
	Test         SourceSetName = "test"
	AndroidTest  SourceSetName = "androidTest"
	TestFixtures SourceSetName = "testFixtures"
)

// IsTestingOnly reports whether code in the source set never ships.
func (n SourceSetName) IsTestingOnly() bool {
	return strings.HasPrefix(string(n), string(Test)) && n != TestFixtures ||
		strings.HasPrefix(string(n), string(AndroidTest))
}

// Config returns the configuration of kind base for this source set,
// e.g. Test.Config("implementation") is "testImplementation".
func (n SourceSetName) Config(base string) ConfigurationName {
	if n == Main || n == "" {
		return ConfigurationName(base)
	}
	if prefixConfigs[base] {
		return ConfigurationName(base + capitalize(string(n)))
	}
	return ConfigurationName(string(n) + capitalize(base))
}

// APIConfig is the exposed configuration of the source set.
func (n SourceSetName) APIConfig() ConfigurationName { return n.Config(API) }

// ImplementationConfig is the hidden configuration of the source set.
func (n SourceSetName) ImplementationConfig() ConfigurationName { return n.Config(Implementation) }

// Base configuration kinds.
const (
	API                 = "api"
	Implementation      = "implementation"
	CompileOnly         = "compileOnly"
	RuntimeOnly         = "runtimeOnly"
	Kapt                = "kapt"
	KSP                 = "ksp"
	AnnotationProcessor = "annotationProcessor"
)

// BaseConfigs lists the configuration kinds every source set gets.
var BaseConfigs = []string{API, Implementation, CompileOnly, RuntimeOnly, Kapt, KSP, AnnotationProcessor}

// kapt and ksp put the source set after the kind: kaptTest, kspDebug.
var prefixConfigs = map[string]bool{Kapt: true, KSP: true}

// longest first so that "annotationProcessor" wins over shorter suffixes
var baseBySuffixLength = []string{AnnotationProcessor, Implementation, CompileOnly, RuntimeOnly, API}

// ConfigurationName is a dependency slot name as written in a descriptor.
type ConfigurationName string

// Base returns the configuration kind without its source set, e.g. "implementation"
// for "testImplementation". Unknown names are their own base.
func (c ConfigurationName) Base() string {
	base, _ := c.split()
	return base
}

// SourceSet returns the source set the configuration belongs to.
func (c ConfigurationName) SourceSet() SourceSetName {
	_, ss := c.split()
	return ss
}

func (c ConfigurationName) split() (string, SourceSetName) {
	s := string(c)
	for base := range prefixConfigs {
		if s == base {
			return base, Main
		}
		if strings.HasPrefix(s, base) {
			rest := s[len(base):]
			if rest != "" && unicode.IsUpper(rune(rest[0])) {
				return base, SourceSetName(decapitalize(rest))
			}
		}
	}
	for _, base := range baseBySuffixLength {
		if s == base {
			return base, Main
		}
		if suffix := capitalize(base); strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			return base, SourceSetName(s[:len(s)-len(suffix)])
		}
	}
	return s, Main
}

// IsAPI reports whether dependencies in this configuration are exposed to consumers.
func (c ConfigurationName) IsAPI() bool { return c.Base() == API }

// IsImplementation reports whether this is a hidden compile configuration.
func (c ConfigurationName) IsImplementation() bool { return c.Base() == Implementation }

// IsCodeGen reports whether the configuration feeds an annotation processor.
func (c ConfigurationName) IsCodeGen() bool {
	switch c.Base() {
	case Kapt, KSP, AnnotationProcessor:
		return true
	}
	return false
}

// IsKnown reports whether the configuration is one of the base kinds.
func (c ConfigurationName) IsKnown() bool {
	base := c.Base()
	for _, b := range BaseConfigs {
		if b == base {
			return true
		}
	}
	return false
}

// APIVariant is the exposed configuration of the same source set.
func (c ConfigurationName) APIVariant() ConfigurationName { return c.SourceSet().APIConfig() }

// ImplementationVariant is the hidden configuration of the same source set.
func (c ConfigurationName) ImplementationVariant() ConfigurationName {
	return c.SourceSet().ImplementationConfig()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func decapitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
