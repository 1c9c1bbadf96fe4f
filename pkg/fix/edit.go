package fix

import (
	"strings"

	"github.com/platinummonkey/modcheck/pkg/descriptor"
	"github.com/platinummonkey/modcheck/pkg/project"
)

// Declaration renders dep as a statement body in the descriptor dialect.
func Declaration(kotlin bool, dep project.Dependency) string {
	if dep.IsProject() {
		return descriptor.ProjectDeclaration(kotlin, string(dep.Configuration), dep.Path, dep.TestFixture)
	}
	coordinates := dep.Coordinates
	if dep.Version != "" {
		coordinates += ":" + dep.Version
	}
	return descriptor.ExternalDeclaration(kotlin, string(dep.Configuration), coordinates)
}

// insertDependency adds dep next to the best anchor. Already declared
// dependencies leave the text unchanged.
func insertDependency(text string, kotlin bool, dep project.Dependency, source *project.Dependency) string {
	parsed := descriptor.Parse(text, kotlin)
	for _, s := range parsed.Statements() {
		if dep.Matches(s) {
			return text
		}
	}
	decl := Declaration(kotlin, dep)

	if anchor, before := findAnchor(parsed, dep, decl, source); anchor != nil {
		if before {
			return text[:anchor.Start] + descriptor.Surround(anchor.Indent, decl) + text[anchor.Start:]
		}
		start, end := statementSpan(text, anchor)
		if text[start:end] != anchor.WithSurroundingText {
			// statement shares its line with the closing brace
			return text[:end] + "\n" + anchor.Indent + decl + text[end:]
		}
		return text[:end] + descriptor.Surround(anchor.Indent, decl) + text[end:]
	}

	if block := parsed.LastDependenciesBlock(); block != nil {
		at := block.ContentEnd
		closing := strings.LastIndexByte(text[:at], '\n') + 1
		indent := descriptor.DefaultIndent
		prefix := ""
		if closing > block.ContentStart && strings.TrimSpace(text[closing:at]) == "" {
			indent = text[closing:at] + descriptor.DefaultIndent
			at = closing
		} else {
			prefix = "\n"
		}
		return text[:at] + prefix + descriptor.Surround(indent, decl) + text[at:]
	}

	var b strings.Builder
	b.WriteString(text)
	if text != "" && !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
	if text != "" {
		b.WriteString("\n")
	}
	b.WriteString("dependencies {\n")
	b.WriteString(descriptor.Surround(descriptor.DefaultIndent, decl))
	b.WriteString("}\n")
	return b.String()
}

// findAnchor picks the statement the new declaration goes next to. before
// reports whether it is inserted above the anchor rather than below.
func findAnchor(parsed *descriptor.Parsed, dep project.Dependency, decl string, source *project.Dependency) (anchor *descriptor.Statement, before bool) {
	statements := parsed.Statements()
	for _, s := range statements {
		if s.Identifier() == dep.Identifier() && s.TestFixture == dep.TestFixture {
			return s, false
		}
	}
	if source != nil {
		for _, s := range statements {
			if source.Matches(s) {
				return s, false
			}
		}
	}
	var last *descriptor.Statement
	for _, s := range statements {
		if s.Configuration != string(dep.Configuration) {
			continue
		}
		if strings.ToLower(s.Text) > strings.ToLower(decl) {
			return s, true
		}
		last = s
	}
	if last != nil {
		return last, false
	}
	if block := parsed.LastDependenciesBlock(); block != nil && len(block.Statements) > 0 {
		return block.Statements[len(block.Statements)-1], false
	}
	return nil, false
}

func removeDependency(text string, kotlin bool, dep project.Dependency, ruleID string, strategy Strategy) (string, error) {
	for _, s := range descriptor.Parse(text, kotlin).Statements() {
		if dep.Matches(s) {
			return removeStatement(text, s, ruleID, strategy), nil
		}
	}
	return "", descriptor.ErrStatementNotFound
}

func removePlugin(text string, kotlin bool, id, ruleID string, strategy Strategy) (string, error) {
	ids := []string{id}
	if id == project.KaptPluginID {
		ids = project.KaptPluginIDs
	}
	stmt := descriptor.Parse(text, kotlin).Plugin(ids...)
	if stmt == nil {
		return "", descriptor.ErrStatementNotFound
	}
	return removeStatement(text, stmt, ruleID, strategy), nil
}

// statementSpan returns the offsets of s.WithSurroundingText within text, without
// the trailing newline when the parser had to supply one.
func statementSpan(text string, s *descriptor.Statement) (start, end int) {
	start = s.Start
	end = start + len(s.WithSurroundingText)
	if end > len(text) || text[start:end] != s.WithSurroundingText {
		end--
	}
	return start, end
}

func removeStatement(text string, s *descriptor.Statement, ruleID string, strategy Strategy) string {
	start, end := statementSpan(text, s)
	if strategy == CommentOut {
		lineStart := s.Offset - len(s.Indent)
		body, head, tail := lineStart, "", ""
		if lineStart > 0 && text[lineStart-1] != '\n' {
			// statement follows the block header on the same line
			body, head = s.Offset, "\n"+descriptor.DefaultIndent
		}
		if end < len(text) && text[end-1] != '\n' && text[end] != '\n' {
			// closing brace shares the statement's line
			tail = "\n"
		}
		return text[:lineStart] + head + descriptor.CommentOut(text[body:end], ruleID) + tail + text[end:]
	}
	out := text[:start] + text[end:]
	// keep a single blank line where the statement sat between two of them
	if blankLineBefore(out, start) {
		if rest := strings.TrimLeft(out[start:], " \t"); strings.HasPrefix(rest, "\n") {
			out = out[:start] + out[len(out)-len(rest)+1:]
		}
	}
	return out
}

func blankLineBefore(text string, offset int) bool {
	if offset < 2 || text[offset-1] != '\n' {
		return false
	}
	prev := strings.LastIndexByte(text[:offset-1], '\n') + 1
	return strings.TrimSpace(text[prev:offset-1]) == ""
}

// setFeature rewrites a declared feature flag or adds it to android { buildFeatures { } }.
func setFeature(text string, kotlin bool, name string, enabled bool) string {
	value := "false"
	if enabled {
		value = "true"
	}
	if flag, ok := descriptor.Parse(text, kotlin).Feature(name); ok {
		idx := strings.Index(text[flag.Offset:], flag.Text)
		if idx < 0 {
			return text
		}
		at := flag.Offset + idx
		current := strings.TrimSuffix(strings.TrimSuffix(flag.Text, "true"), "false")
		return text[:at] + current + value + text[at+len(flag.Text):]
	}

	decl := descriptor.FeatureDeclaration(kotlin, name, enabled)
	android := descriptor.FindBlock(text, "android", 0, len(text))
	if android == nil {
		var b strings.Builder
		b.WriteString(text)
		if text != "" && !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\nandroid {\n")
		b.WriteString(descriptor.Surround("  ", "buildFeatures {"))
		b.WriteString(descriptor.Surround("    ", decl))
		b.WriteString(descriptor.Surround("  ", "}"))
		b.WriteString("}\n")
		return b.String()
	}

	if features := descriptor.FindBlock(text, "buildFeatures", android.ContentStart, android.ContentEnd); features != nil {
		return insertAfterHeader(text, features.ContentStart, blockIndent(text, features.Start)+descriptor.DefaultIndent+decl)
	}
	indent := blockIndent(text, android.Start) + descriptor.DefaultIndent
	lines := indent + "buildFeatures {\n" + indent + descriptor.DefaultIndent + decl + "\n" + indent + "}"
	return insertAfterHeader(text, android.ContentStart, lines)
}

// insertAfterHeader inserts line on its own line after the block opening at contentStart.
func insertAfterHeader(text string, contentStart int, line string) string {
	nl := strings.IndexByte(text[contentStart:], '\n')
	if nl < 0 {
		return text[:contentStart] + "\n" + line + "\n" + text[contentStart:]
	}
	at := contentStart + nl + 1
	return text[:at] + line + "\n" + text[at:]
}

func blockIndent(text string, start int) string {
	ls := strings.LastIndexByte(text[:start], '\n') + 1
	return text[ls:start]
}
