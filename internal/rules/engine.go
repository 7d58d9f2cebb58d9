package rules

import (
	"wixlint/internal/condition"
	"wixlint/internal/diag"
	"wixlint/internal/document"
)

// Options selects which rules run and how their output is shaped.
type Options struct {
	// MinSeverity drops rules below this level. Zero keeps everything.
	MinSeverity diag.Severity
	// Enabled decides per rule id. Nil falls back to the rule's own default.
	Enabled func(ruleID string) bool
	// Categories restricts rules to these categories. Empty means all.
	Categories []diag.Category
	// MaxDiagnostics caps the diagnostics of one document. Zero is unlimited.
	MaxDiagnostics int
	// SeverityOverride replaces a rule's severity before the minimum check.
	SeverityOverride func(ruleID string) (diag.Severity, bool)
}

// Stats summarizes one or more evaluations.
type Stats struct {
	FilesAnalyzed  int                   `json:"files_analyzed"`
	RulesEvaluated int                   `json:"rules_evaluated"`
	NodesChecked   int                   `json:"nodes_checked"`
	BySeverity     map[diag.Severity]int `json:"by_severity,omitempty"`
	ByRule         map[string]int        `json:"by_rule,omitempty"`
}

// Merge adds o into s.
func (s *Stats) Merge(o Stats) {
	s.FilesAnalyzed += o.FilesAnalyzed
	s.RulesEvaluated += o.RulesEvaluated
	s.NodesChecked += o.NodesChecked
	for k, v := range o.BySeverity {
		if s.BySeverity == nil {
			s.BySeverity = make(map[diag.Severity]int)
		}
		s.BySeverity[k] += v
	}
	for k, v := range o.ByRule {
		if s.ByRule == nil {
			s.ByRule = make(map[string]int)
		}
		s.ByRule[k] += v
	}
}

type bound struct {
	rule     Rule
	severity diag.Severity
}

// Engine evaluates a fixed rule set. It holds no mutable state, so one
// Engine may be shared by every worker; each worker brings its own
// condition.Evaluator.
type Engine struct {
	active []bound
	byKind map[string][]int // element kind -> indexes into active
	any    []int            // rules targeting AnyElement
	opt    Options
}

// NewEngine filters rules through opt and groups the survivors by target
// kind. Rule order within a kind is preserved.
func NewEngine(rules []Rule, opt Options) *Engine {
	e := &Engine{byKind: make(map[string][]int), opt: opt}
	for _, r := range rules {
		if !e.selected(r) {
			continue
		}
		sev := r.Severity
		if opt.SeverityOverride != nil {
			if o, ok := opt.SeverityOverride(r.ID); ok {
				sev = o
			}
		}
		if sev < opt.MinSeverity {
			continue
		}
		e.active = append(e.active, bound{rule: r, severity: sev})
		i := len(e.active) - 1
		if r.Element == AnyElement {
			e.any = append(e.any, i)
		} else {
			e.byKind[r.Element] = append(e.byKind[r.Element], i)
		}
	}
	return e
}

func (e *Engine) selected(r Rule) bool {
	if e.opt.Enabled != nil {
		if !e.opt.Enabled(r.ID) {
			return false
		}
	} else if !r.IsEnabled() {
		return false
	}
	if len(e.opt.Categories) == 0 {
		return true
	}
	for _, c := range e.opt.Categories {
		if c == r.Category {
			return true
		}
	}
	return false
}

// Rules returns the active rules with their effective severity.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.active))
	for i, b := range e.active {
		out[i] = b.rule
		out[i].Severity = b.severity
	}
	return out
}

// Len is the number of active rules.
func (e *Engine) Len() int { return len(e.active) }

// Evaluate runs every applicable rule against every node of doc and returns
// the diagnostics sorted by location and rule id.
func (e *Engine) Evaluate(doc *document.Document, ev *condition.Evaluator) ([]diag.Diagnostic, Stats) {
	st := Stats{
		FilesAnalyzed: 1,
		BySeverity:    make(map[diag.Severity]int),
		ByRule:        make(map[string]int),
	}
	var out []diag.Diagnostic
	doc.Walk(func(id document.NodeID) bool {
		st.NodesChecked++
		for _, group := range [2][]int{e.byKind[doc.Kind(id)], e.any} {
			for _, i := range group {
				b := &e.active[i]
				st.RulesEvaluated++
				if !ev.Eval(b.rule.Condition, doc, id) {
					continue
				}
				out = append(out, e.emit(b, doc, id))
				st.BySeverity[b.severity]++
				st.ByRule[b.rule.ID]++
			}
		}
		return true
	})
	diag.Sort(out)
	if e.opt.MaxDiagnostics > 0 && len(out) > e.opt.MaxDiagnostics {
		out = out[:e.opt.MaxDiagnostics]
	}
	return out, st
}

func (e *Engine) emit(b *bound, doc *document.Document, id document.NodeID) diag.Diagnostic {
	r := &b.rule
	d := diag.Diagnostic{
		RuleID:        r.ID,
		Severity:      b.severity,
		Category:      r.Category,
		Message:       RenderMessage(r.Message, doc, id),
		Location:      diag.NodeLocation(doc, id),
		Help:          r.Help,
		Tags:          r.Tags,
		EffortMinutes: r.EffortMinutes,
		DocURL:        r.DocURL,
	}
	if r.Fix != nil {
		f := *r.Fix
		d.Fix = &f
	}
	return d
}
