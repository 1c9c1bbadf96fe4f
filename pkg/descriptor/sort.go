package descriptor

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultDependencyComparators order dependency groups, code generator configurations first.
var DefaultDependencyComparators = []string{`.*`, `kapt.*`}

// DefaultPluginComparators order plugin declarations.
var DefaultPluginComparators = []string{
	`id\("com\.android.*"\)`,
	`id\("android-.*"\)`,
	`id\("java-library"\)`,
	`kotlin\("jvm"\)`,
	`android.*`,
	`javaLibrary.*`,
	`kotlin.*`,
	`id.*`,
}

// CompileComparators compiles comparator patterns, anchoring them to the full statement.
func CompileComparators(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")$")
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// compareByPatterns orders a before b when, at the first comparator on which they
// differ, only a matches. It returns 0 when no comparator separates them.
func compareByPatterns(comparators []*regexp.Regexp, a, b string) int {
	for _, re := range comparators {
		ma, mb := re.MatchString(a), re.MatchString(b)
		switch {
		case ma && !mb:
			return -1
		case mb && !ma:
			return 1
		}
	}
	return 0
}

var groupSplitRe = regexp.MustCompile(`[(. ]`)

// groupKey groups statements by their first two notation tokens, e.g. `implementation-project`.
func groupKey(s *Statement) string {
	parts := groupSplitRe.Split(s.Text, 3)
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.ToLower(strings.Join(parts, "-"))
}

// SortedContent returns the block content with statements grouped and ordered by the
// comparators. ok is false when the block holds text the sorter cannot place, such
// as free-standing comments or nested blocks.
func SortedContent(text string, block *Block, comparators []*regexp.Regexp, grouped bool) (content string, ok bool) {
	if len(block.Statements) == 0 {
		return "", false
	}
	rest := block.Content(text)
	for _, s := range block.Statements {
		rest = strings.Replace(rest, s.WithSurroundingText, "", 1)
	}
	if strings.TrimSpace(rest) != "" {
		return "", false
	}

	groups := make(map[string][]*Statement)
	var keys []string
	for _, s := range block.Statements {
		key := groupKey(s)
		if !grouped {
			key = ""
		}
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], s)
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if c := compareByPatterns(comparators, groups[keys[i]][0].Text, groups[keys[j]][0].Text); c != 0 {
			return c < 0
		}
		return keys[i] < keys[j]
	})

	var b strings.Builder
	b.WriteString("\n")
	for i, key := range keys {
		stmts := groups[key]
		sort.SliceStable(stmts, func(a, c int) bool {
			if cmp := compareByPatterns(comparators, stmts[a].Text, stmts[c].Text); cmp != 0 {
				return cmp < 0
			}
			return strings.ToLower(stmts[a].Text) < strings.ToLower(stmts[c].Text)
		})
		if i > 0 {
			b.WriteString("\n")
		}
		for _, s := range stmts {
			b.WriteString(s.WithSurroundingText)
		}
	}
	original := block.Content(text)
	b.WriteString(original[strings.LastIndexByte(original, '\n')+1:])
	return b.String(), true
}

// IsSorted reports whether the block content already matches its sorted form,
// ignoring blank-line differences at the edges.
func IsSorted(text string, block *Block, comparators []*regexp.Regexp, grouped bool) bool {
	sorted, ok := SortedContent(text, block, comparators, grouped)
	if !ok {
		return true
	}
	return strings.TrimSpace(sorted) == strings.TrimSpace(block.Content(text))
}
