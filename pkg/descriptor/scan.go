package descriptor

import "strings"

// skipLiteral returns the index of the last byte of the string literal or comment
// starting at i, or -1 when text[i] does not start one.
func skipLiteral(text string, i int) int {
	rest := text[i:]
	switch {
	case strings.HasPrefix(rest, "//"):
		if j := strings.IndexByte(rest, '\n'); j >= 0 {
			return i + j - 1
		}
		return len(text) - 1
	case strings.HasPrefix(rest, "/*"):
		if j := strings.Index(rest[2:], "*/"); j >= 0 {
			return i + 2 + j + 1
		}
		return len(text) - 1
	case strings.HasPrefix(rest, `"""`):
		if j := strings.Index(rest[3:], `"""`); j >= 0 {
			return i + 3 + j + 2
		}
		return len(text) - 1
	case rest[0] == '"' || rest[0] == '\'':
		quote := rest[0]
		for j := 1; j < len(rest); j++ {
			switch rest[j] {
			case '\\':
				j++
			case quote:
				return i + j
			case '\n':
				return i + j - 1
			}
		}
		return len(text) - 1
	}
	return -1
}

// matchBrace returns the offset of the brace closing the one at open, or -1.
func matchBrace(text string, open int) int {
	depth := 0
	for i := open; i < len(text); i++ {
		if end := skipLiteral(text, i); end >= 0 {
			i = end
			continue
		}
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// bracketDelta counts unbalanced parentheses and braces in a line, ignoring literals and comments.
func bracketDelta(line string) int {
	delta := 0
	for i := 0; i < len(line); i++ {
		if end := skipLiteral(line, i); end >= 0 {
			i = end
			continue
		}
		switch line[i] {
		case '(', '{':
			delta++
		case ')', '}':
			delta--
		}
	}
	return delta
}

// isCommentLine reports whether a trimmed line is a single-line comment.
func isCommentLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "//") ||
		(strings.HasPrefix(trimmed, "/*") && strings.HasSuffix(trimmed, "*/")) ||
		strings.HasPrefix(trimmed, "*")
}

// position converts a byte offset into a 1-based row and column.
func position(text string, offset int) (int, int) {
	if offset > len(text) {
		offset = len(text)
	}
	before := text[:offset]
	row := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndexByte(before, '\n')
	return row, col
}

// lineStart returns the offset of the first byte of the line containing offset.
func lineStart(text string, offset int) int {
	return strings.LastIndexByte(text[:offset], '\n') + 1
}

func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
