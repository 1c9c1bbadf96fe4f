package source

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/platinummonkey/modcheck/pkg/project"
	"github.com/platinummonkey/modcheck/pkg/storage"
)

var javaTypeDeclarations = map[string]bool{
	"class_declaration":           true,
	"interface_declaration":       true,
	"enum_declaration":            true,
	"record_declaration":          true,
	"annotation_type_declaration": true,
}

// ParseJava extracts the symbols of one Java file.
func ParseJava(ctx context.Context, src []byte) (*storage.FileAnalysis, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse java: %w", err)
	}
	defer tree.Close()

	w := &javaWalker{c: newCollector(storage.LanguageJava), src: src}
	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "package_declaration":
			text := strings.TrimSuffix(strings.TrimSpace(n.Content(src)), ";")
			w.c.pkg = strings.TrimSpace(text[strings.LastIndex(text, "package")+len("package"):])
		case "import_declaration":
			text := strings.TrimSuffix(strings.TrimSpace(n.Content(src)), ";")
			text = strings.TrimSpace(strings.TrimPrefix(text, "import"))
			text = strings.TrimSpace(strings.TrimPrefix(text, "static "))
			w.c.addImport(strings.Join(strings.Fields(text), ""), "")
		}
	}
	w.walk(root, w.c.pkg, true, false)
	return w.c.result(), nil
}

type javaWalker struct {
	c   *collector
	src []byte
}

func (w *javaWalker) text(n *sitter.Node) string { return n.Content(w.src) }

func modifiersOf(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == "modifiers" {
			return child
		}
	}
	return nil
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func (w *javaWalker) modifiers(n *sitter.Node) string {
	if m := modifiersOf(n); m != nil {
		return w.text(m)
	}
	return ""
}

// walk visits n. owner is the enclosing type or package, public tells whether the
// enclosing declarations are visible outside the module and api whether types
// found here belong to a public signature.
func (w *javaWalker) walk(n *sitter.Node, owner string, public, api bool) {
	switch t := n.Type(); {
	case t == "package_declaration" || t == "import_declaration" || t == "line_comment" || t == "block_comment":
		return
	case javaTypeDeclarations[t]:
		name := ""
		if id := n.ChildByFieldName("name"); id != nil {
			name = w.text(id)
		}
		fq := join(owner, name)
		vis := visibilityOf(w.modifiers(n), true)
		w.c.declare(fq, vis)
		exposed := public && vis == project.Public
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "identifier":
			case "superclass", "super_interfaces", "extends_interfaces", "type_parameters":
				w.walk(child, fq, exposed, exposed)
			default:
				w.walk(child, fq, exposed, false)
			}
		}
		return
	case t == "method_declaration" || t == "constructor_declaration" || t == "field_declaration" || t == "constant_declaration":
		vis := visibilityOf(w.modifiers(n), true)
		exposed := public && vis == project.Public
		body := n.ChildByFieldName("body")
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if body != nil && sameNode(child, body) || child.Type() == "variable_declarator" {
				w.walk(child, owner, public, false)
				continue
			}
			w.walk(child, owner, public, exposed)
		}
		return
	case t == "marker_annotation" || t == "annotation":
		name := n.ChildByFieldName("name")
		args := n.ChildByFieldName("arguments")
		argText := ""
		if args != nil {
			argText = w.text(args)
			w.walk(args, owner, public, false)
		}
		if name != nil {
			w.c.annotation(w.text(name), argText)
		}
		return
	case t == "type_identifier":
		w.c.typeRef(w.text(n), api)
		return
	case t == "scoped_type_identifier":
		w.c.qualified(strings.Join(strings.Fields(w.text(n)), ""), api)
		return
	case t == "field_access" || t == "scoped_identifier":
		w.c.expression(w.text(n))
		return
	case t == "identifier":
		if text := w.text(n); isUpper(text) {
			w.c.typeRef(text, false)
		}
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.walk(n.NamedChild(i), owner, public, api)
	}
}
