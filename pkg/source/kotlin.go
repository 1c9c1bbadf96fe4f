package source

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/kotlin"

	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/storage"
)

// ParseKotlin extracts the symbols of one Kotlin file.
func ParseKotlin(ctx context.Context, src []byte) (*storage.FileAnalysis, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(kotlin.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kotlin: %w", err)
	}
	defer tree.Close()

	w := &kotlinWalker{c: newCollector(storage.LanguageKotlin), src: src}
	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "package_header":
			w.c.pkg = strings.Join(strings.Fields(strings.TrimPrefix(strings.TrimSpace(n.Content(src)), "package")), "")
		case "import_list":
			for j := 0; j < int(n.NamedChildCount()); j++ {
				if h := n.NamedChild(j); h.Type() == "import_header" {
					w.importHeader(h.Content(src))
				}
			}
		case "import_header":
			w.importHeader(n.Content(src))
		}
	}
	w.walkChildren(root, w.c.pkg, true, false, true)
	return w.c.result(), nil
}

type kotlinWalker struct {
	c   *collector
	src []byte
}

func (w *kotlinWalker) text(n *sitter.Node) string { return n.Content(w.src) }

func (w *kotlinWalker) importHeader(text string) {
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "import"))
	text = strings.TrimSuffix(text, ";")
	alias := ""
	if i := strings.Index(text, " as "); i >= 0 {
		alias = strings.TrimSpace(text[i+len(" as "):])
		text = text[:i]
	}
	w.c.addImport(strings.Join(strings.Fields(text), ""), alias)
}

func (w *kotlinWalker) modifiers(n *sitter.Node) string {
	if m := modifiersOf(n); m != nil {
		return w.text(m)
	}
	return ""
}

func firstChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == typ {
			return child
		}
	}
	return nil
}

func firstDescendantOfType(n *sitter.Node, typ string) *sitter.Node {
	if n.Type() == typ {
		return n
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if found := firstDescendantOfType(n.NamedChild(i), typ); found != nil {
			return found
		}
	}
	return nil
}

func (w *kotlinWalker) walkChildren(n *sitter.Node, owner string, public, api, topLevel bool) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.walk(n.NamedChild(i), owner, public, api, topLevel)
	}
}

// walk visits n. topLevel is set for direct children of the file, where functions
// and properties are declarations of the package.
func (w *kotlinWalker) walk(n *sitter.Node, owner string, public, api, topLevel bool) {
	switch n.Type() {
	case "package_header", "import_list", "import_header", "line_comment", "multiline_comment", "comment", "file_annotation":
		return

	case "class_declaration", "object_declaration", "type_alias":
		name := firstChildOfType(n, "type_identifier")
		fq := owner
		if name != nil {
			fq = join(owner, w.text(name))
		}
		vis := visibilityOf(w.modifiers(n), false)
		w.c.declare(fq, vis)
		exposed := public && vis == project.Public
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch {
			case name != nil && sameNode(child, name):
			case child.Type() == "class_body" || child.Type() == "enum_class_body":
				w.walkChildren(child, fq, exposed, false, false)
			case child.Type() == "modifiers":
				w.walk(child, fq, exposed, false, false)
			default:
				w.walk(child, fq, exposed, exposed, false)
			}
		}

	case "companion_object":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "type_identifier":
			case "class_body":
				w.walkChildren(child, owner, public, false, false)
			default:
				w.walk(child, owner, public, false, false)
			}
		}

	case "function_declaration":
		vis := visibilityOf(w.modifiers(n), false)
		name := firstChildOfType(n, "simple_identifier")
		if topLevel && name != nil {
			w.c.declare(join(w.c.pkg, w.text(name)), vis)
		}
		exposed := public && vis == project.Public
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "simple_identifier":
			case "function_body", "modifiers":
				w.walk(child, owner, public, false, false)
			default:
				w.walk(child, owner, public, exposed, false)
			}
		}

	case "property_declaration":
		vis := visibilityOf(w.modifiers(n), false)
		if v := firstChildOfType(n, "variable_declaration"); topLevel && v != nil {
			if id := firstChildOfType(v, "simple_identifier"); id != nil {
				w.c.declare(join(w.c.pkg, w.text(id)), vis)
			}
		}
		exposed := public && vis == project.Public
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "variable_declaration", "user_type", "nullable_type", "type_parameters":
				w.walk(child, owner, public, exposed, false)
			default:
				w.walk(child, owner, public, false, false)
			}
		}

	case "annotation":
		ut := firstDescendantOfType(n, "user_type")
		if ut == nil {
			return
		}
		w.c.annotation(w.userTypeName(ut), w.text(n))
		if args := firstDescendantOfType(n, "value_arguments"); args != nil {
			w.walkChildren(args, owner, public, false, false)
		}

	case "user_type":
		w.c.qualified(w.userTypeName(n), api)
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if args := firstChildOfType(n.NamedChild(i), "type_arguments"); args != nil {
				w.walkChildren(args, owner, public, api, false)
			}
		}

	case "navigation_expression":
		w.c.expression(w.text(n))
		w.walkNavigation(n, owner, public)

	case "call_expression":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if i == 0 && child.Type() == "simple_identifier" {
				w.c.typeRef(w.text(child), false)
				continue
			}
			w.walk(child, owner, public, false, false)
		}

	case "simple_identifier":
		if text := w.text(n); isUpper(text) {
			w.c.typeRef(text, false)
		}

	case "type_identifier":
		w.c.typeRef(w.text(n), api)

	default:
		w.walkChildren(n, owner, public, api, false)
	}
}

// walkNavigation visits the operands of a navigation chain without recording its
// prefixes again.
func (w *kotlinWalker) walkNavigation(n *sitter.Node, owner string, public bool) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "navigation_expression":
			w.walkNavigation(child, owner, public)
		case "navigation_suffix", "simple_identifier":
		default:
			w.walk(child, owner, public, false, false)
		}
	}
}

// userTypeName returns the dotted name of a user type without type arguments.
func (w *kotlinWalker) userTypeName(n *sitter.Node) string {
	var parts []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "simple_user_type":
			if id := firstChildOfType(child, "type_identifier"); id != nil {
				parts = append(parts, w.text(id))
			}
		case "type_identifier":
			parts = append(parts, w.text(child))
		}
	}
	if len(parts) == 0 {
		return strings.Join(strings.Fields(w.text(n)), "")
	}
	return strings.Join(parts, ".")
}
