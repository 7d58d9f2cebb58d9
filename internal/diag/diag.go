// Package diag defines the diagnostic model shared by the rule engine, the
// analysis cache, the baseline and the output layer.
//
// Everything in here is plain data with JSON tags; results are persisted by
// the cache exactly as they are encoded here, so field renames are cache
// format changes.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Severity orders diagnostics from informational to release-blocking.
type Severity int

const (
	SeverityInfo Severity = iota + 1
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityBlocker
)

var severityNames = map[Severity]string{
	SeverityInfo:    "info",
	SeverityLow:     "low",
	SeverityMedium:  "medium",
	SeverityHigh:    "high",
	SeverityBlocker: "blocker",
}

// Severities lists every level in ascending order.
func Severities() []Severity {
	return []Severity{SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityBlocker}
}

// ParseSeverity accepts the level names plus the legacy aliases
// "warning" (medium), "error" (high) and "critical" (blocker).
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info", "hint", "note":
		return SeverityInfo, nil
	case "low", "minor":
		return SeverityLow, nil
	case "medium", "warning", "major":
		return SeverityMedium, nil
	case "high", "error":
		return SeverityHigh, nil
	case "blocker", "critical":
		return SeverityBlocker, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler (JSON and YAML).
func (s Severity) MarshalText() ([]byte, error) {
	if _, ok := severityNames[s]; !ok {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler (JSON and YAML).
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Category groups rules by intent.
type Category string

const (
	CategoryValidation      Category = "validation"
	CategoryBestPractice    Category = "best-practice"
	CategorySecurity        Category = "security"
	CategoryDeadCode        Category = "dead-code"
	CategoryPerformance     Category = "performance"
	CategoryMaintainability Category = "maintainability"
)

// Categories lists every known category.
func Categories() []Category {
	return []Category{
		CategoryValidation, CategoryBestPractice, CategorySecurity,
		CategoryDeadCode, CategoryPerformance, CategoryMaintainability,
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, k := range Categories() {
		if c == k {
			return true
		}
	}
	return false
}

// Location is a 1-based source span inside one file.
type Location struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	EndLine int    `json:"end_line"`
	EndCol  int    `json:"end_col"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

// Attr is a name/value pair carried by fix actions.
type Attr struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// FixKind names the edit a fix performs.
type FixKind string

const (
	FixAddAttribute     FixKind = "add-attribute"
	FixRemoveAttribute  FixKind = "remove-attribute"
	FixReplaceAttribute FixKind = "replace-attribute"
	FixAddElement       FixKind = "add-element"
	FixRemoveElement    FixKind = "remove-element"
	FixReplaceText      FixKind = "replace-text"
)

// FixAction is the concrete edit. Fields are interpreted per Kind:
// attribute fixes use Name/Value, add-element uses Element, Attributes and
// Position ("first" or "last"), replace-text uses Value.
type FixAction struct {
	Kind       FixKind `json:"kind" yaml:"kind"`
	Name       string  `json:"name,omitempty" yaml:"name"`
	Value      string  `json:"value,omitempty" yaml:"value"`
	Element    string  `json:"element,omitempty" yaml:"element"`
	Attributes []Attr  `json:"attributes,omitempty" yaml:"attributes"`
	Position   string  `json:"position,omitempty" yaml:"position"`
}

// Fix describes an automatic remedy attached to a rule.
type Fix struct {
	Description string    `json:"description" yaml:"description"`
	Action      FixAction `json:"action" yaml:"action"`
}

// Related points at a secondary location, e.g. the first of two duplicate
// definitions.
type Related struct {
	Location Location `json:"location"`
	Message  string   `json:"message"`
}

// Diagnostic is one finding.
type Diagnostic struct {
	RuleID        string    `json:"rule_id"`
	Severity      Severity  `json:"severity"`
	Category      Category  `json:"category,omitempty"`
	Message       string    `json:"message"`
	Location      Location  `json:"location"`
	Help          string    `json:"help,omitempty"`
	Fix           *Fix      `json:"fix,omitempty"`
	Related       []Related `json:"related,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	EffortMinutes int       `json:"effort_minutes,omitempty"`
	DocURL        string    `json:"doc_url,omitempty"`
}

// Result holds the diagnostics of one analyzed file.
type Result struct {
	File        string       `json:"file"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	// Suppressed counts diagnostics removed by inline suppression comments.
	Suppressed int `json:"suppressed,omitempty"`
	// FromCache is set when the result was served by the analysis cache.
	FromCache bool `json:"-"`
}

// CountBySeverity tallies diagnostics per level.
func (r Result) CountBySeverity() map[Severity]int {
	out := make(map[Severity]int, 5)
	for _, d := range r.Diagnostics {
		out[d.Severity]++
	}
	return out
}

// AtLeast reports whether any diagnostic is at or above min.
func (r Result) AtLeast(min Severity) bool {
	for _, d := range r.Diagnostics {
		if d.Severity >= min {
			return true
		}
	}
	return false
}

// Sort orders diagnostics by file, line, column and rule id. The sort is
// stable so equal keys keep their emission order.
func Sort(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i].Location, ds[j].Location
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Col != b.Col {
			return a.Col < b.Col
		}
		return ds[i].RuleID < ds[j].RuleID
	})
}

// SortResults orders results by file path.
func SortResults(rs []Result) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].File < rs[j].File })
}

// Total counts diagnostics across results.
func Total(rs []Result) int {
	n := 0
	for _, r := range rs {
		n += len(r.Diagnostics)
	}
	return n
}
