// Package report renders run outcomes for people and CI systems and publishes
// them to object storage.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/platinummonkey/modcheck/pkg/finding"
)

// Renderer writes an outcome in one output format.
type Renderer interface {
	Render(w io.Writer, o *finding.Outcome) error
}

// Option configures a renderer.
type Option func(*options)

type options struct {
	root    string
	verbose bool
}

// WithRoot prints descriptor paths relative to root.
func WithRoot(root string) Option {
	return func(o *options) { o.root = root }
}

// WithVerbose includes the source edge of each result in text output.
func WithVerbose(verbose bool) Option {
	return func(o *options) { o.verbose = verbose }
}

// NewRenderer returns the renderer for format: text, json or github.
func NewRenderer(format string, opts ...Option) (Renderer, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	switch format {
	case "", "text":
		return &TextRenderer{opts: o}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "github":
		return &GitHubRenderer{opts: o}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

func (o *options) file(path string) string {
	if path == "" || o.root == "" {
		return path
	}
	if rel, err := filepath.Rel(o.root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}

// TextRenderer prints results grouped by module followed by a summary.
type TextRenderer struct {
	opts *options
}

func (r *TextRenderer) Render(w io.Writer, o *finding.Outcome) error {
	for _, group := range o.ByModule() {
		fmt.Fprintf(w, "\n%s:\n", group.Module)
		for _, res := range group.Results {
			fmt.Fprintf(w, "  %s: [%s] %s (%s)\n", r.location(res), res.RuleID, res.Message, status(res))
			if r.opts.verbose && res.Source != "" {
				fmt.Fprintf(w, "    Source: %s\n", res.Source)
			}
		}
	}
	for _, e := range o.ModuleErrors {
		fmt.Fprintf(w, "\nerror: %s\n", e.Error())
	}
	if o.Err != nil {
		fmt.Fprintf(w, "\nerror: %v\n", o.Err)
	}

	s := Summarize(o)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Results:       %d\n", s.Results)
	fmt.Fprintf(w, "  Fixed:         %d\n", s.Fixed)
	fmt.Fprintf(w, "  Unfixed:       %d\n", s.Unfixed)
	fmt.Fprintf(w, "  Module errors: %d\n", s.ModuleErrors)

	if !o.Failed() {
		_, err := fmt.Fprintln(w, "\n✓ No unfixed dependency issues")
		return err
	}
	return nil
}

func (r *TextRenderer) location(res finding.Result) string {
	file := r.opts.file(res.File)
	if file == "" {
		file = res.Module
	}
	if res.Position == nil {
		return file
	}
	return fmt.Sprintf("%s:%d:%d", file, res.Position.Row, res.Position.Column)
}

func status(res finding.Result) string {
	switch {
	case res.Fixed:
		return "fixed"
	case res.Kind == finding.ReportOnly.String():
		return "info"
	default:
		return "not fixed"
	}
}

// Summary counts an outcome's results.
type Summary struct {
	Results      int  `json:"results"`
	Fixed        int  `json:"fixed"`
	Unfixed      int  `json:"unfixed"`
	ModuleErrors int  `json:"moduleErrors"`
	Failed       bool `json:"failed"`
}

// Summarize counts o.
func Summarize(o *finding.Outcome) Summary {
	return Summary{
		Results:      len(o.Results),
		Fixed:        o.Fixed(),
		Unfixed:      o.Unfixed,
		ModuleErrors: len(o.ModuleErrors),
		Failed:       o.Failed(),
	}
}

// Document is the JSON report.
type Document struct {
	RunID        string                `json:"runId"`
	Results      []finding.Result      `json:"results"`
	ModuleErrors []finding.ModuleError `json:"moduleErrors,omitempty"`
	Error        string                `json:"error,omitempty"`
	Summary      Summary               `json:"summary"`
}

// NewDocument converts o.
func NewDocument(o *finding.Outcome) Document {
	d := Document{
		RunID:        o.RunID,
		Results:      o.Results,
		ModuleErrors: o.ModuleErrors,
		Summary:      Summarize(o),
	}
	if d.Results == nil {
		d.Results = []finding.Result{}
	}
	if o.Err != nil {
		d.Error = o.Err.Error()
	}
	return d
}

// JSONRenderer writes a Document.
type JSONRenderer struct{}

func (JSONRenderer) Render(w io.Writer, o *finding.Outcome) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewDocument(o))
}

// GitHubRenderer writes GitHub Actions workflow annotations.
type GitHubRenderer struct {
	opts *options
}

// ::error file={name},line={line},col={col}::{message}
func (r *GitHubRenderer) Render(w io.Writer, o *finding.Outcome) error {
	for _, res := range o.Results {
		level := "error"
		if !res.Fails() {
			level = "notice"
		}
		var props []string
		if file := r.opts.file(res.File); file != "" {
			props = append(props, "file="+escapeProperty(file))
			if res.Position != nil {
				props = append(props, fmt.Sprintf("line=%d", res.Position.Row), fmt.Sprintf("col=%d", res.Position.Column))
			}
		}
		props = append(props, "title="+escapeProperty(res.RuleID))
		if _, err := fmt.Fprintf(w, "::%s %s::%s\n", level, strings.Join(props, ","),
			escapeData(fmt.Sprintf("[%s] %s (%s)", res.RuleID, res.Message, status(res)))); err != nil {
			return err
		}
	}
	for _, e := range o.ModuleErrors {
		fmt.Fprintf(w, "::error::%s\n", escapeData(e.Error()))
	}
	if o.Err != nil {
		fmt.Fprintf(w, "::error::%s\n", escapeData(o.Err.Error()))
	}
	return nil
}

var (
	dataEscaper     = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")
	propertyEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C")
)

func escapeData(s string) string     { return dataEscaper.Replace(s) }
func escapeProperty(s string) string { return propertyEscaper.Replace(s) }
