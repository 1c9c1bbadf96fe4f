package source

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/platinummonkey/modcheck/pkg/storage"
)

var (
	resourceValueRe = regexp.MustCompile(`[@?](\+)?(?:(\w+):)?(\w+)/([\w.]+)`)

	valueTypes = map[string]string{
		"string":            "string",
		"color":             "color",
		"dimen":             "dimen",
		"bool":              "bool",
		"integer":           "integer",
		"style":             "style",
		"plurals":           "plurals",
		"attr":              "attr",
		"array":             "array",
		"string-array":      "array",
		"integer-array":     "array",
		"declare-styleable": "styleable",
		"drawable":          "drawable",
		"fraction":          "fraction",
	}
)

// resourceDirType returns the resource type of a res/ subdirectory, dropping
// qualifiers: "values-night" is "values", "layout-land" is "layout".
func resourceDirType(dir string) string {
	if i := strings.IndexByte(dir, '-'); i >= 0 {
		return dir[:i]
	}
	return dir
}

// resourceBaseName strips the extensions of a resource file, including ".9" of
// nine-patch images.
func resourceBaseName(path string) string {
	name := filepath.Base(path)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

func resourceName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

// ParseResource extracts the declarations and references of one file under a res/
// directory. path must keep the type directory, e.g. res/layout/main.xml.
func ParseResource(path string, content []byte) (*storage.FileAnalysis, error) {
	c := newCollector(storage.LanguageResource)
	dirType := resourceDirType(filepath.Base(filepath.Dir(path)))
	base := resourceBaseName(path)
	isXML := strings.EqualFold(filepath.Ext(path), ".xml")

	switch dirType {
	case "values":
		if err := parseValues(c, content); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case "layout":
		c.declareResource("R.layout." + base)
		c.analysis.Layouts = append(c.analysis.Layouts, base)
		if err := scanXML(c, content, true); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		c.declareResource("R." + dirType + "." + base)
		if isXML {
			if err := scanXML(c, content, false); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}
	return c.result(), nil
}

func (c *collector) resourceValues(text string) {
	for _, m := range resourceValueRe.FindAllStringSubmatch(text, -1) {
		plus, namespace, typ, name := m[1], m[2], m[3], resourceName(m[4])
		if namespace == "android" {
			continue
		}
		if plus != "" && typ == "id" {
			c.declareResource("R.id." + name)
			continue
		}
		c.resourceRef("R." + typ + "." + name)
	}
}

func parseValues(c *collector, content []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(content))
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				typ := valueTypes[t.Name.Local]
				if t.Name.Local == "item" {
					typ = attr(t, "type")
				}
				if name := attr(t, "name"); typ != "" && name != "" {
					c.declareResource("R." + typ + "." + resourceName(name))
				}
			}
			if t.Name.Local == "style" {
				if parent := attr(t, "parent"); parent != "" && !strings.Contains(parent, ":") {
					c.resourceValues("@style/" + strings.TrimPrefix(parent, "@style/"))
				}
			}
			if depth == 3 && t.Name.Local == "attr" {
				if name := attr(t, "name"); name != "" && !strings.Contains(name, ":") {
					c.declareResource("R.attr." + resourceName(name))
				}
			}
			for _, a := range t.Attr {
				if a.Name.Local != "name" && a.Name.Local != "parent" {
					c.resourceValues(a.Value)
				}
			}
		case xml.EndElement:
			depth--
		case xml.CharData:
			c.resourceValues(string(t))
		}
	}
}

// scanXML reads references from a layout, menu, drawable or navigation file.
// Custom view tags and fragment class names are class references.
func scanXML(c *collector, content []byte, layout bool) error {
	dec := xml.NewDecoder(bytes.NewReader(content))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if layout && strings.Contains(t.Name.Local, ".") {
				c.qualified(t.Name.Local, false)
			}
			for _, a := range t.Attr {
				switch {
				case a.Name.Space == "tools" || strings.HasSuffix(a.Name.Space, "/tools"):
				case (a.Name.Local == "name" || a.Name.Local == "class") && strings.Contains(a.Value, ".") && !strings.HasPrefix(a.Value, "."):
					c.qualified(a.Value, false)
				default:
					c.resourceValues(a.Value)
				}
			}
		case xml.CharData:
			c.resourceValues(string(t))
		}
	}
}

func attr(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
