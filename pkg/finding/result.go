package finding

import (
	"fmt"
	"sort"
	"strings"
)

// Position is a 1-based location in a build descriptor.
type Position struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Result is the reportable form of a finding after fixes were attempted.
type Result struct {
	Module        string    `json:"module"`
	RuleID        string    `json:"ruleId"`
	Kind          string    `json:"kind"`
	Action        string    `json:"action"`
	Dependency    string    `json:"dependency,omitempty"`
	Configuration string    `json:"configuration,omitempty"`
	Source        string    `json:"source,omitempty"`
	Message       string    `json:"message"`
	Position      *Position `json:"position,omitempty"`
	Fixed         bool      `json:"fixed"`
	File          string    `json:"file,omitempty"`
}

// NewResult converts f.
func NewResult(f *Finding, fixed bool) Result {
	r := Result{
		Module:        f.Module,
		RuleID:        f.RuleID,
		Kind:          f.Kind.String(),
		Action:        f.Category().String(),
		Dependency:    f.Identifier(),
		Configuration: f.Configuration(),
		Message:       f.Message,
		Fixed:         fixed,
	}
	if f.Source != nil {
		r.Source = f.Source.String()
	}
	if f.Row > 0 {
		r.Position = &Position{Row: f.Row, Column: f.Column}
	}
	return r
}

// Fails reports whether the result counts toward failure: every unfixed result except report-only ones.
func (r Result) Fails() bool {
	return !r.Fixed && r.Kind != ReportOnly.String()
}

// SortResults groups results by module and orders them within a module the way
// arbitration orders findings: add, modify, remove, edit, sort, report.
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if ra, rb := actionRank(a.Action), actionRank(b.Action); ra != rb {
			return ra < rb
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return a.Dependency < b.Dependency
	})
}

func actionRank(action string) int {
	for c := CategoryAdd; c <= CategoryReport; c++ {
		if c.String() == action {
			return int(c)
		}
	}
	return int(CategoryReport) + 1
}

// ModuleError records a fatal failure scoped to one module, such as an unreadable descriptor.
type ModuleError struct {
	Module string `json:"module"`
	Err    error  `json:"-"`
}

func (e ModuleError) Error() string { return e.Module + ": " + e.Err.Error() }

func (e ModuleError) Unwrap() error { return e.Err }

// MarshalText lets the error message appear in JSON reports.
func (e ModuleError) MarshalText() ([]byte, error) { return []byte(e.Error()), nil }

// Outcome is the aggregate result of a run.
type Outcome struct {
	RunID        string        `json:"runId"`
	Results      []Result      `json:"results"`
	Unfixed      int           `json:"unfixed"`
	ModuleErrors []ModuleError `json:"moduleErrors,omitempty"`
	// Err is a fatal, run-wide failure such as a dependency cycle.
	Err error `json:"-"`
}

// NewOutcome sorts results and counts the unfixed ones.
func NewOutcome(runID string, results []Result, moduleErrors []ModuleError, err error) *Outcome {
	SortResults(results)
	o := &Outcome{RunID: runID, Results: results, ModuleErrors: moduleErrors, Err: err}
	for _, r := range results {
		if r.Fails() {
			o.Unfixed++
		}
	}
	return o
}

// Failed reports whether the run should exit non-zero.
func (o *Outcome) Failed() bool {
	return o.Err != nil || o.Unfixed > 0 || len(o.ModuleErrors) > 0
}

// Fixed returns how many results were auto-corrected.
func (o *Outcome) Fixed() int {
	n := 0
	for _, r := range o.Results {
		if r.Fixed {
			n++
		}
	}
	return n
}

// Error summarizes a failed outcome, grouped by module and rule.
func (o *Outcome) Error() string {
	if !o.Failed() {
		return ""
	}
	if o.Err != nil {
		return o.Err.Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "modcheck found %d issue(s) which were not auto-corrected", o.Unfixed)
	if len(o.ModuleErrors) > 0 {
		fmt.Fprintf(&b, " and %d module(s) failed", len(o.ModuleErrors))
	}
	for _, group := range o.ByModule() {
		for _, r := range group.Results {
			if !r.Fails() {
				continue
			}
			fmt.Fprintf(&b, "\n  %s %s %s", group.Module, r.RuleID, r.Dependency)
		}
	}
	for _, e := range o.ModuleErrors {
		fmt.Fprintf(&b, "\n  %s", e.Error())
	}
	return b.String()
}

// ModuleResults are the results of one module.
type ModuleResults struct {
	Module  string
	Results []Result
}

// ByModule groups results by module, preserving order.
func (o *Outcome) ByModule() []ModuleResults {
	var out []ModuleResults
	for _, r := range o.Results {
		if len(out) == 0 || out[len(out)-1].Module != r.Module {
			out = append(out, ModuleResults{Module: r.Module})
		}
		last := &out[len(out)-1]
		last.Results = append(last.Results, r)
	}
	return out
}
