package descriptor

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// FixLabelPrefix marks lines written by the fix applicator.
const FixLabelPrefix = "// modcheck finding"

// Block is a brace-delimited section of a descriptor such as `dependencies { ... }`.
type Block struct {
	Name string
	// Start and End delimit the block text, from the keyword through the closing brace.
	Start int
	End   int
	// ContentStart and ContentEnd delimit the text between the braces.
	ContentStart int
	ContentEnd   int
	Suppressed   []string
	Statements   []*Statement
}

// Content returns the text between the block's braces.
func (b *Block) Content(text string) string {
	return text[b.ContentStart:b.ContentEnd]
}

// Statement is one declaration inside a dependencies or plugins block.
type Statement struct {
	// Text is the declaration itself, without indentation or trailing newline.
	Text string
	// WithSurroundingText includes attached leading comments and annotations, the
	// indentation and the trailing newline.
	WithSurroundingText string
	Start               int
	Offset              int
	Indent              string

	Configuration string
	ProjectPath   string
	Coordinates   string
	Version       string
	TestFixture   bool
	PluginID      string

	Suppressed []string
	Row        int
	Column     int
}

// IsProject reports whether the statement declares a project dependency.
func (s *Statement) IsProject() bool { return s.ProjectPath != "" }

// Identifier is the project path or external coordinates the statement points at.
func (s *Statement) Identifier() string {
	if s.ProjectPath != "" {
		return s.ProjectPath
	}
	return s.Coordinates
}

// IsSuppressed reports whether any of ids is suppressed for this statement.
func (s *Statement) IsSuppressed(ids ...string) bool {
	for _, id := range ids {
		for _, suppressed := range s.Suppressed {
			if suppressed == id {
				return true
			}
		}
	}
	return false
}

// FeatureFlag is a generated-code feature toggle such as `viewBinding = true`.
type FeatureFlag struct {
	Name       string
	Enabled    bool
	Text       string
	Offset     int
	Row        int
	Suppressed []string
}

// Parsed is the structured view of a descriptor's text.
type Parsed struct {
	Text         string
	Kotlin       bool
	Dependencies []*Block
	Plugins      *Block
	Features     []FeatureFlag
	Namespace    string
	// AndroidVersion is the Android Gradle Plugin version declared in the plugins block, if any.
	AndroidVersion string
}

// Statements returns all dependency statements in declaration order.
func (p *Parsed) Statements() []*Statement {
	var out []*Statement
	for _, b := range p.Dependencies {
		out = append(out, b.Statements...)
	}
	return out
}

// LastDependenciesBlock returns the last dependencies block or nil.
func (p *Parsed) LastDependenciesBlock() *Block {
	if len(p.Dependencies) == 0 {
		return nil
	}
	return p.Dependencies[len(p.Dependencies)-1]
}

// Feature returns the named feature flag, if declared.
func (p *Parsed) Feature(name string) (FeatureFlag, bool) {
	for _, f := range p.Features {
		if f.Name == name {
			return f, true
		}
	}
	return FeatureFlag{}, false
}

// HasPlugin reports whether a plugin with any of the given ids is applied.
func (p *Parsed) HasPlugin(ids ...string) bool {
	return p.Plugin(ids...) != nil
}

// Plugin returns the first plugin statement matching one of ids.
func (p *Parsed) Plugin(ids ...string) *Statement {
	if p.Plugins == nil {
		return nil
	}
	for _, s := range p.Plugins.Statements {
		for _, id := range ids {
			if s.PluginID == id {
				return s
			}
		}
	}
	return nil
}

var (
	blockHeaderRe = regexp.MustCompile(`(?m)^[ \t]*([A-Za-z_][\w]*)[ \t]*\{`)
	configRe      = regexp.MustCompile(`^"?([A-Za-z_][\w]*)"?`)
	projectRe     = regexp.MustCompile(`project\(\s*(?:path\s*=\s*)?["']([^"']+)["']`)
	groovyProjRe  = regexp.MustCompile(`project\s*\(\s*path\s*:\s*["']([^"']+)["']`)
	typesafeRe    = regexp.MustCompile(`\bprojects\.([\w.]+)`)
	stringRe      = regexp.MustCompile(`["']([^"'$]+)["']`)
	catalogRe     = regexp.MustCompile(`\b(libs\.[\w.]+)`)
	suppressRe    = regexp.MustCompile(`@Suppress\(([^)]*)\)`)
	noInspectRe   = regexp.MustCompile(`//\s*noinspection\s+(.+)$`)
	pluginIDRe    = regexp.MustCompile(`^id\s*\(?\s*["']([^"']+)["']\s*\)?`)
	pluginKtRe    = regexp.MustCompile(`^kotlin\(\s*["']([^"']+)["']\s*\)`)
	pluginBareRe  = regexp.MustCompile("^`?([A-Za-z][\\w.-]*)`?$")
	pluginAliasRe = regexp.MustCompile(`^alias\(\s*(libs\.plugins\.[\w.]+)\s*\)`)
	pluginVerRe   = regexp.MustCompile(`\bversion\s*\(?\s*["']([^"']+)["']`)
	featureRe     = regexp.MustCompile(`(?m)^[ \t]*(?:android\.)?(?:buildFeatures\.)?(viewBinding|androidResources|dataBinding)[ \t]*(?:=[ \t]*|[ \t]+)(true|false)\b`)
	namespaceRe   = regexp.MustCompile(`(?m)^[ \t]*namespace[ \t]*=?[ \t]*["']([^"']+)["']`)
)

// nestedScopes hold dependencies blocks which do not describe the module's own classpath.
var nestedScopes = map[string]bool{
	"buildscript":                    true,
	"subprojects":                    true,
	"allprojects":                    true,
	"constraints":                    true,
	"dependencyResolutionManagement": true,
}

// Parse extracts blocks, statements, suppressions and feature flags from descriptor text.
func Parse(text string, kotlin bool) *Parsed {
	parsed := &Parsed{Text: text, Kotlin: kotlin}

	var excluded [][2]int
	for _, loc := range blockHeaderRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[loc[2]:loc[3]]
		if inRanges(excluded, loc[2]) || inLiteral(text, loc[2]) {
			continue
		}
		open := loc[1] - 1
		end := matchBrace(text, open)
		if end < 0 {
			continue
		}
		if nestedScopes[name] {
			excluded = append(excluded, [2]int{open, end})
			continue
		}
		block := &Block{
			Name:         name,
			Start:        loc[2],
			End:          end + 1,
			ContentStart: open + 1,
			ContentEnd:   end,
			Suppressed:   leadingSuppressions(text, lineStart(text, loc[2])),
		}
		switch name {
		case "dependencies":
			block.Statements = parseStatements(text, block, false)
			parsed.Dependencies = append(parsed.Dependencies, block)
		case "plugins":
			if parsed.Plugins == nil {
				block.Statements = parseStatements(text, block, true)
				parsed.Plugins = block
			}
		}
	}

	for _, loc := range featureRe.FindAllStringSubmatchIndex(text, -1) {
		if inLiteral(text, loc[2]) {
			continue
		}
		row, _ := position(text, loc[2])
		start := lineStart(text, loc[2])
		parsed.Features = append(parsed.Features, FeatureFlag{
			Name:       text[loc[2]:loc[3]],
			Enabled:    text[loc[4]:loc[5]] == "true",
			Text:       strings.TrimSpace(text[start:loc[1]]),
			Offset:     start,
			Row:        row,
			Suppressed: leadingSuppressions(text, start),
		})
	}

	if m := namespaceRe.FindStringSubmatch(text); m != nil {
		parsed.Namespace = m[1]
	}
	if android := parsed.Plugin("com.android.library", "com.android.application"); android != nil {
		if m := pluginVerRe.FindStringSubmatch(android.Text); m != nil {
			parsed.AndroidVersion = m[1]
		}
	}
	return parsed
}

func inRanges(ranges [][2]int, offset int) bool {
	for _, r := range ranges {
		if offset > r[0] && offset < r[1] {
			return true
		}
	}
	return false
}

// inLiteral reports whether offset sits inside a comment or string on its line.
func inLiteral(text string, offset int) bool {
	start := lineStart(text, offset)
	for i := start; i < offset; i++ {
		if end := skipLiteral(text, i); end >= 0 {
			if end >= offset {
				return true
			}
			i = end
		}
	}
	return false
}

// parseStatements splits a block's content into statements, attaching leading
// comments and annotations that are not separated by a blank line.
func parseStatements(text string, block *Block, plugins bool) []*Statement {
	var (
		out          []*Statement
		pendingStart = -1
		stmtStart    = -1
		depth        int
	)

	offset := block.ContentStart
	// the header line only counts when a statement follows the opening brace
	header := text[offset:block.ContentEnd]
	nl := strings.IndexByte(header, '\n')
	if nl >= 0 {
		header = header[:nl]
	}
	if rest := strings.TrimSpace(header); rest == "" || isCommentLine(rest) {
		if nl < 0 {
			return nil
		}
		offset += nl + 1
	}

	for offset < block.ContentEnd {
		lineEnd := strings.IndexByte(text[offset:block.ContentEnd], '\n')
		next := block.ContentEnd
		if lineEnd >= 0 {
			next = offset + lineEnd + 1
		}
		line := strings.TrimRight(text[offset:next], "\r\n")
		trimmed := strings.TrimSpace(line)

		switch {
		case stmtStart >= 0:
			depth += bracketDelta(line)
		case trimmed == "":
			pendingStart = -1
		case strings.Contains(trimmed, FixLabelPrefix):
			pendingStart = -1
		case isCommentLine(trimmed) || strings.HasPrefix(trimmed, "@"):
			if pendingStart < 0 {
				pendingStart = offset
			}
		default:
			stmtStart = offset
			depth = bracketDelta(line)
		}

		if stmtStart >= 0 && depth <= 0 {
			end := next
			if end == block.ContentEnd && !strings.HasSuffix(text[stmtStart:end], "\n") {
				// statement shares its line with the closing brace
				end = stmtStart + len(strings.TrimRight(text[stmtStart:end], " \t"))
			}
			surroundStart := stmtStart
			if pendingStart >= 0 {
				surroundStart = pendingStart
			}
			out = append(out, newStatement(text, block, surroundStart, stmtStart, end, plugins))
			stmtStart, pendingStart, depth = -1, -1, 0
		}
		offset = next
	}
	return out
}

func newStatement(text string, block *Block, surroundStart, start, end int, plugins bool) *Statement {
	raw := text[start:end]
	indent := indentOf(raw)
	body := strings.TrimRight(strings.TrimPrefix(raw, indent), " \t\r\n")
	body = stripTrailingComment(body)

	with := text[surroundStart:end]
	if !strings.HasSuffix(with, "\n") {
		with += "\n"
	}
	row, col := position(text, start+len(indent))
	stmt := &Statement{
		Text:                body,
		WithSurroundingText: with,
		Start:               surroundStart,
		Offset:              start + len(indent),
		Indent:              indent,
		Row:                 row,
		Column:              col,
	}

	stmt.Suppressed = append(stmt.Suppressed, block.Suppressed...)
	stmt.Suppressed = append(stmt.Suppressed, suppressionsIn(text[surroundStart:start])...)
	if m := noInspectRe.FindStringSubmatch(strings.TrimSpace(raw)); m != nil {
		stmt.Suppressed = append(stmt.Suppressed, splitIDs(m[1])...)
	}

	if plugins {
		stmt.PluginID = pluginID(body)
		return stmt
	}

	if m := configRe.FindStringSubmatch(body); m != nil {
		stmt.Configuration = m[1]
	}
	stmt.TestFixture = strings.Contains(body, "testFixtures(")
	switch {
	case projectRe.MatchString(body):
		stmt.ProjectPath = projectRe.FindStringSubmatch(body)[1]
	case groovyProjRe.MatchString(body):
		stmt.ProjectPath = groovyProjRe.FindStringSubmatch(body)[1]
	case typesafeRe.MatchString(body):
		stmt.ProjectPath = typesafePath(typesafeRe.FindStringSubmatch(body)[1])
	default:
		if m := stringRe.FindStringSubmatch(body); m != nil && strings.Contains(m[1], ":") {
			parts := strings.SplitN(m[1], ":", 3)
			stmt.Coordinates = parts[0] + ":" + parts[1]
			if len(parts) == 3 {
				stmt.Version = parts[2]
			}
		} else if m := catalogRe.FindStringSubmatch(body); m != nil {
			stmt.Coordinates = m[1]
		}
	}
	return stmt
}

func stripTrailingComment(body string) string {
	for i := 0; i < len(body); i++ {
		if strings.HasPrefix(body[i:], "//") {
			return strings.TrimRight(body[:i], " \t")
		}
		if end := skipLiteral(body, i); end >= 0 {
			i = end
		}
	}
	return body
}

// typesafePath converts a type-safe project accessor (`projects.libCore.api`) into a path.
func typesafePath(accessor string) string {
	parts := strings.Split(accessor, ".")
	for i, p := range parts {
		var b strings.Builder
		for j, r := range p {
			if unicode.IsUpper(r) && j > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		}
		parts[i] = b.String()
	}
	return ":" + strings.Join(parts, ":")
}

func pluginID(body string) string {
	if m := pluginIDRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	if m := pluginKtRe.FindStringSubmatch(body); m != nil {
		return "org.jetbrains.kotlin." + m[1]
	}
	if m := pluginAliasRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	if m := pluginBareRe.FindStringSubmatch(body); m != nil {
		if m[1] == "kotlin-kapt" {
			return "org.jetbrains.kotlin.kapt"
		}
		return m[1]
	}
	return ""
}

// leadingSuppressions reads annotation and comment lines directly above the line starting at start.
func leadingSuppressions(text string, start int) []string {
	end := start
	for start > 0 {
		prev := lineStart(text, start-1)
		trimmed := strings.TrimSpace(text[prev : start-1])
		if trimmed == "" || !(isCommentLine(trimmed) || strings.HasPrefix(trimmed, "@")) {
			break
		}
		start = prev
	}
	return suppressionsIn(text[start:end])
}

func suppressionsIn(lines string) []string {
	var ids []string
	for _, m := range suppressRe.FindAllStringSubmatch(lines, -1) {
		ids = append(ids, splitIDs(m[1])...)
	}
	for _, line := range strings.Split(lines, "\n") {
		if m := noInspectRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			ids = append(ids, splitIDs(m[1])...)
		}
	}
	return ids
}

func splitIDs(list string) []string {
	var ids []string
	for _, f := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || unicode.IsSpace(r) }) {
		f = strings.Trim(f, `"'`)
		if f != "" {
			ids = append(ids, f)
		}
	}
	sort.Strings(ids)
	return ids
}

// FindBlock returns the first top-level or nested block called name that starts at
// or after offset and ends before limit, or nil. Statements are not parsed.
func FindBlock(text, name string, offset, limit int) *Block {
	for _, loc := range blockHeaderRe.FindAllStringSubmatchIndex(text[offset:limit], -1) {
		start := offset + loc[2]
		if text[start:offset+loc[3]] != name || inLiteral(text, start) {
			continue
		}
		open := offset + loc[1] - 1
		end := matchBrace(text, open)
		if end < 0 || end >= limit {
			continue
		}
		return &Block{
			Name:         name,
			Start:        start,
			End:          end + 1,
			ContentStart: open + 1,
			ContentEnd:   end,
		}
	}
	return nil
}
