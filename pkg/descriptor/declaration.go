package descriptor

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultIndent is used when a block has no statements to copy indentation from.
const DefaultIndent = "  "

// FixLabel returns the trailing marker appended to lines commented out for ruleID.
func FixLabel(ruleID string) string {
	return "  " + FixLabelPrefix + " [" + ruleID + "]"
}

// ProjectDeclaration renders a project dependency in the descriptor's dialect.
func ProjectDeclaration(kotlin bool, configuration, path string, testFixture bool) string {
	var target string
	if kotlin {
		target = fmt.Sprintf(`project(%q)`, path)
	} else {
		target = fmt.Sprintf(`project('%s')`, path)
	}
	if testFixture {
		target = "testFixtures(" + target + ")"
	}
	if kotlin {
		return configuration + "(" + target + ")"
	}
	return configuration + " " + target
}

// ExternalDeclaration renders an external artifact dependency in the descriptor's dialect.
func ExternalDeclaration(kotlin bool, configuration, coordinates string) string {
	if strings.HasPrefix(coordinates, "libs.") {
		if kotlin {
			return configuration + "(" + coordinates + ")"
		}
		return configuration + " " + coordinates
	}
	if kotlin {
		return fmt.Sprintf("%s(%q)", configuration, coordinates)
	}
	return fmt.Sprintf("%s '%s'", configuration, coordinates)
}

// WithConfiguration rewrites the configuration name at the head of a declaration,
// keeping the dependency notation as written.
func WithConfiguration(declaration, configuration string) string {
	loc := configRe.FindStringSubmatchIndex(declaration)
	if loc == nil {
		return declaration
	}
	return declaration[:loc[2]] + configuration + declaration[loc[3]:]
}

// Surround renders a declaration as a full statement line with indentation and newline.
func Surround(indent, declaration string) string {
	return indent + declaration + "\n"
}

var commentOutRe = regexp.MustCompile(`^(\s*)(\S.*)$`)

// CommentOut prefixes each non-blank line of text with a line comment and appends
// the fix label for ruleID to the last line.
func CommentOut(text, ruleID string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines[i] = commentOutRe.ReplaceAllString(line, "${1}// ${2}")
	}
	last := len(lines) - 1
	for last > 0 && strings.TrimSpace(lines[last]) == "" {
		last--
	}
	lines[last] += FixLabel(ruleID)
	return strings.Join(lines, "\n")
}

// FeatureDeclaration renders a feature toggle.
func FeatureDeclaration(kotlin bool, name string, enabled bool) string {
	if kotlin {
		return fmt.Sprintf("%s = %t", name, enabled)
	}
	return fmt.Sprintf("%s %t", name, enabled)
}
