// Package report renders analysis results for people (text) and for tools
// (JSON). Output is deterministic: no timestamps, no environment data, and
// paths relative to the project root.
package report

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"

	"wixlint/internal/diag"
	"wixlint/internal/fsutil"
)

// Format names an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" or "json" (any case).
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("report: unknown format %q (want text or json)", s)
}

// Options configures rendering.
type Options struct {
	Format Format
	// Base makes file paths relative; empty keeps them as given.
	Base string
	// Filtered counts diagnostics removed by baseline or diff filters.
	Filtered int
	// Previews maps a diagnostic key (see PreviewKey) to a unified diff of
	// its fix.
	Previews map[string]string
	// Color wraps text severities in ANSI colors.
	Color bool
}

var severityColor = map[diag.Severity]string{
	diag.SeverityInfo:    "\x1b[36m",
	diag.SeverityLow:     "\x1b[34m",
	diag.SeverityMedium:  "\x1b[33m",
	diag.SeverityHigh:    "\x1b[31m",
	diag.SeverityBlocker: "\x1b[1;31m",
}

func severityText(s diag.Severity, color bool) string {
	if !color {
		return s.String()
	}
	return severityColor[s] + s.String() + "\x1b[0m"
}

// PreviewKey identifies d for Options.Previews.
func PreviewKey(d diag.Diagnostic) string {
	return fmt.Sprintf("%s\x00%s\x00%d\x00%d", d.RuleID, d.Location.File, d.Location.Line, d.Location.Col)
}

// Summary is the totals block shared by both formats.
type Summary struct {
	Files       int            `json:"files"`
	WithIssues  int            `json:"files_with_issues"`
	Diagnostics int            `json:"diagnostics"`
	Suppressed  int            `json:"suppressed"`
	Filtered    int            `json:"filtered,omitempty"`
	BySeverity  map[string]int `json:"by_severity"`
}

// Summarize totals results.
func Summarize(results []diag.Result, filtered int) Summary {
	s := Summary{Files: len(results), Filtered: filtered, BySeverity: make(map[string]int)}
	for _, r := range results {
		if len(r.Diagnostics) > 0 {
			s.WithIssues++
		}
		s.Diagnostics += len(r.Diagnostics)
		s.Suppressed += r.Suppressed
		for _, d := range r.Diagnostics {
			s.BySeverity[d.Severity.String()]++
		}
	}
	return s
}

// Write renders results to w.
func Write(w io.Writer, results []diag.Result, opt Options) error {
	switch opt.Format {
	case FormatJSON:
		return writeJSON(w, results, opt)
	case FormatText, "":
		return writeText(w, results, opt)
	}
	return fmt.Errorf("report: unknown format %q", opt.Format)
}

type jsonReport struct {
	Summary Summary       `json:"summary"`
	Results []diag.Result `json:"results"`
}

func writeJSON(w io.Writer, results []diag.Result, opt Options) error {
	out := jsonReport{Summary: Summarize(results, opt.Filtered), Results: make([]diag.Result, 0, len(results))}
	for _, r := range results {
		r.File = diag.RelativeFile(r.File, opt.Base)
		ds := make([]diag.Diagnostic, len(r.Diagnostics))
		for i, d := range r.Diagnostics {
			d.Location.File = diag.RelativeFile(d.Location.File, opt.Base)
			d.Related = append([]diag.Related(nil), d.Related...)
			for j := range d.Related {
				d.Related[j].Location.File = diag.RelativeFile(d.Related[j].Location.File, opt.Base)
			}
			ds[i] = d
		}
		r.Diagnostics = ds
		out.Results = append(out.Results, r)
	}
	data, err := fsutil.MarshalJSON(out)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

type textLine struct {
	Where    string
	Severity string
	RuleID   string
	Message  string
	Help     string
	Related  []string
	Preview  string
}

type textCtx struct {
	Lines    []textLine
	Summary  Summary
	Severity []sevCount
}

type sevCount struct {
	Name  string
	Count int
}

const textTemplate = `{{range .Lines -}}
{{.Where}}: {{.Severity}} [{{.RuleID}}] {{.Message}}
{{- if .Help}}
    help: {{.Help}}
{{- end}}
{{- range .Related}}
    note: {{.}}
{{- end}}
{{- if .Preview}}
{{.Preview}}
{{- end}}
{{end -}}
{{with .Summary -}}
{{.Diagnostics}} issue(s) in {{.WithIssues}} of {{.Files}} file(s)
{{- if .Suppressed}}, {{.Suppressed}} suppressed{{end}}
{{- if .Filtered}}, {{.Filtered}} filtered{{end}}
{{- end}}
{{- range .Severity}}
  {{.Name}}: {{.Count}}
{{- end}}
`

var textTmpl = template.Must(template.New("text").Parse(textTemplate))

func writeText(w io.Writer, results []diag.Result, opt Options) error {
	ctx := textCtx{Summary: Summarize(results, opt.Filtered)}
	for _, r := range results {
		for _, d := range r.Diagnostics {
			l := textLine{
				Where:    fmt.Sprintf("%s:%d:%d", diag.RelativeFile(d.Location.File, opt.Base), d.Location.Line, d.Location.Col),
				Severity: severityText(d.Severity, opt.Color),
				RuleID:   d.RuleID,
				Message:  d.Message,
				Help:     d.Help,
				Preview:  strings.TrimRight(opt.Previews[PreviewKey(d)], "\n"),
			}
			for _, rel := range d.Related {
				l.Related = append(l.Related, fmt.Sprintf("%s at %s:%d", rel.Message, diag.RelativeFile(rel.Location.File, opt.Base), rel.Location.Line))
			}
			ctx.Lines = append(ctx.Lines, l)
		}
	}
	// Highest severity first.
	sevs := diag.Severities()
	sort.SliceStable(sevs, func(i, j int) bool { return sevs[i] > sevs[j] })
	for _, s := range sevs {
		if n := ctx.Summary.BySeverity[s.String()]; n > 0 {
			ctx.Severity = append(ctx.Severity, sevCount{Name: s.String(), Count: n})
		}
	}

	var buf bytes.Buffer
	if err := textTmpl.Execute(&buf, ctx); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	lines := strings.Split(buf.String(), "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " \t")
	}
	out := strings.Join(lines, "\n")
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	_, err := io.WriteString(w, out)
	return err
}
