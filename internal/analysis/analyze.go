// Package analysis runs every check against WiX documents: the declarative
// rules, reference resolution, duplicate and orphan detection and dependency
// cycles. Project drives a whole file set through a sequential indexing
// phase and a parallel evaluation phase.
package analysis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeebo/xxh3"

	"wixlint/internal/condition"
	"wixlint/internal/config"
	"wixlint/internal/diag"
	"wixlint/internal/document"
	"wixlint/internal/metrics"
	"wixlint/internal/rules"
	"wixlint/internal/suppress"
	"wixlint/internal/symbols"
)

type boundCheck struct {
	Check
	severity diag.Severity
}

// Analyzer holds the rule engine and the selected built-in checks for one
// configuration. It is immutable after New and safe to share; every
// goroutine brings its own condition.Evaluator.
type Analyzer struct {
	cfg    *config.Config
	engine *rules.Engine
	checks map[string]boundCheck
	digest string
}

// New binds rs and the built-in checks to cfg. A nil cfg means defaults.
func New(rs []rules.Rule, cfg *config.Config) *Analyzer {
	if cfg == nil {
		cfg = config.Default()
	}
	defaults := make(map[string]bool, len(rs))
	for _, r := range rs {
		defaults[r.ID] = r.IsEnabled()
	}
	a := &Analyzer{
		cfg: cfg,
		engine: rules.NewEngine(rs, rules.Options{
			MinSeverity:      cfg.MinSeverityLevel(),
			Enabled:          func(id string) bool { return cfg.RuleEnabled(id, defaults[id]) },
			Categories:       categories(cfg),
			SeverityOverride: cfg.SeverityOverride,
		}),
		checks: make(map[string]boundCheck, len(Checks)),
	}
	cats := cfg.CategorySet()
	for _, c := range Checks {
		if !cfg.RuleEnabled(c.ID, true) || (cats != nil && !cats[c.Category]) {
			continue
		}
		sev := c.Severity
		if o, ok := cfg.SeverityOverride(c.ID); ok {
			sev = o
		}
		if sev < cfg.MinSeverityLevel() {
			continue
		}
		a.checks[c.ID] = boundCheck{Check: c, severity: sev}
	}
	a.digest = a.computeDigest()
	return a
}

func categories(cfg *config.Config) []diag.Category {
	out := make([]diag.Category, 0, len(cfg.Rules.Categories))
	for _, c := range cfg.Rules.Categories {
		out = append(out, diag.Category(c))
	}
	return out
}

// computeDigest fingerprints everything that shapes the output besides the
// document and the index: active rules with their effective severities and
// the built-in check selection.
func (a *Analyzer) computeDigest() string {
	ids := make([]string, 0, len(a.checks))
	for _, c := range Checks {
		if b, ok := a.checks[c.ID]; ok {
			ids = append(ids, fmt.Sprintf("%s=%d", c.ID, b.severity))
		}
	}
	rs := a.engine.Rules()
	conds := make([]condition.Condition, 0, len(rs))
	for _, r := range rs {
		conds = append(conds, r.Condition)
	}
	payload, err := json.Marshal(struct {
		Rules      []rules.Rule
		Conditions []condition.Condition
		Checks     []string
		Max        int
	}{rs, conds, ids, a.cfg.MaxDiagnostics})
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxh3.Hash(payload))
}

// Digest identifies the rule and check selection; equal digests mean equal
// output for equal inputs.
func (a *Analyzer) Digest() string { return a.digest }

// Engine exposes the bound rule engine.
func (a *Analyzer) Engine() *rules.Engine { return a.engine }

// CheckEnabled reports whether a built-in check survived selection.
func (a *Analyzer) CheckEnabled(id string) bool {
	_, ok := a.checks[id]
	return ok
}

// Analyze runs every active rule and check against doc, applies inline
// suppressions and returns the sorted diagnostics. Identical inputs give
// identical output.
func (a *Analyzer) Analyze(doc *document.Document, res symbols.Resolver, ev *condition.Evaluator) (diag.Result, rules.Stats) {
	start := time.Now()
	ds, st := a.engine.Evaluate(doc, ev)
	if c, ok := a.checks[CheckReference]; ok {
		ds = append(ds, references(c.Check, c.severity, doc, res)...)
	}
	if c, ok := a.checks[CheckDuplicate]; ok {
		ds = append(ds, duplicates(c.Check, c.severity, doc, res)...)
	}
	if c, ok := a.checks[CheckOrphan]; ok {
		ds = append(ds, orphans(c.Check, c.severity, doc, res)...)
	}
	if c, ok := a.checks[CheckDependencies]; ok {
		ds = append(ds, cycles(c.Check, c.severity, doc)...)
	}

	// MaxDiagnostics counts unsuppressed findings only.
	kept, suppressed := suppress.Filter(ds, suppress.Parse(doc.Source))
	diag.Sort(kept)
	if n := a.cfg.MaxDiagnostics; n > 0 && len(kept) > n {
		kept = kept[:n]
	}
	if kept == nil {
		kept = []diag.Diagnostic{}
	}

	st.BySeverity = make(map[diag.Severity]int)
	st.ByRule = make(map[string]int)
	for _, d := range kept {
		st.BySeverity[d.Severity]++
		st.ByRule[d.RuleID]++
	}
	metrics.FilesAnalyzed.Inc()
	metrics.FileAnalysisSeconds.Observe(time.Since(start).Seconds())
	return diag.Result{File: doc.Path, Diagnostics: kept, Suppressed: len(suppressed)}, st
}

// ParseFailure is the result of a file that could not be parsed: a single
// PARSE-001 diagnostic, or none when that check is disabled.
func (a *Analyzer) ParseFailure(path string, err error) diag.Result {
	r := diag.Result{File: path, Diagnostics: []diag.Diagnostic{}}
	if c, ok := a.checks[CheckParse]; ok {
		r.Diagnostics = append(r.Diagnostics, parseFailure(c.Check, c.severity, path, err))
	}
	return r
}

// DefaultRules returns the embedded rule set. It is validated by the test
// suite, so a failure here means a broken build and yields no rules.
func DefaultRules() []rules.Rule {
	rs, err := rules.Builtin()
	if err != nil {
		return nil
	}
	return rs.Rules
}

// Analyze evaluates one document against the embedded rules with a fresh
// evaluator.
func Analyze(doc *document.Document, res symbols.Resolver, cfg *config.Config) diag.Result {
	r, _ := New(DefaultRules(), cfg).Analyze(doc, res, condition.NewEvaluator())
	return r
}
