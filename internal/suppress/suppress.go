// Package suppress reads inline suppression comments and filters the
// diagnostics they silence. It runs after rule evaluation, so suppressed
// findings still count in the engine statistics.
//
//	<!-- wix-analyzer-disable SEC-001, SEC-005 -->  next line, listed rules
//	<!-- wix-analyzer-disable -->                   all rules until enable or EOF
//	<!-- wix-analyzer-disable-next-line SEC-001 --> next line
//	<Property ... /> <!-- wix-analyzer-disable-line SEC-001 -->
//	<!-- wix-analyzer-enable -->                    closes an open block
package suppress

import (
	"regexp"
	"strings"

	"wixlint/internal/diag"
)

var directive = regexp.MustCompile(`<!--\s*wix-analyzer-(disable-next-line|disable-line|disable|enable)\b\s*([\w\-,\s]*?)\s*-->`)

type block struct {
	start, end int // inclusive line range
	rules      ruleSet
}

// ruleSet is a set of uppercased rule ids. Empty means every rule.
type ruleSet map[string]struct{}

func (r ruleSet) covers(id string) bool {
	if len(r) == 0 {
		return true
	}
	_, ok := r[strings.ToUpper(id)]
	return ok
}

// Set holds the suppressions parsed from one source text.
type Set struct {
	lines  map[int]ruleSet
	blocks []block
}

// Parse scans source for suppression comments.
func Parse(source string) *Set {
	s := &Set{lines: make(map[int]ruleSet)}
	lines := strings.Split(source, "\n")
	open := -1 // first suppressed line of the open block

	for i, text := range lines {
		n := i + 1
		for _, m := range directive.FindAllStringSubmatch(text, -1) {
			rules := parseRules(m[2])
			switch m[1] {
			case "enable":
				if open > 0 {
					s.blocks = append(s.blocks, block{start: open, end: n})
					open = -1
				}
			case "disable-line":
				s.addLine(n, rules)
			case "disable-next-line":
				s.addLine(n+1, rules)
			case "disable":
				if len(rules) == 0 {
					if open < 0 {
						open = n + 1
					}
				} else {
					s.addLine(n+1, rules)
				}
			}
		}
	}
	if open > 0 {
		s.blocks = append(s.blocks, block{start: open, end: len(lines) + 1})
	}
	return s
}

func (s *Set) addLine(line int, rules ruleSet) {
	cur, ok := s.lines[line]
	switch {
	case !ok:
		s.lines[line] = rules
	case len(cur) == 0:
		// already suppresses everything
	case len(rules) == 0:
		s.lines[line] = rules
	default:
		for r := range rules {
			cur[r] = struct{}{}
		}
	}
}

// Empty reports whether the source had no suppression comments.
func (s *Set) Empty() bool { return s == nil || (len(s.lines) == 0 && len(s.blocks) == 0) }

// IsSuppressed reports whether ruleID is silenced on line.
func (s *Set) IsSuppressed(ruleID string, line int) bool {
	if s == nil {
		return false
	}
	if rules, ok := s.lines[line]; ok && rules.covers(ruleID) {
		return true
	}
	for _, b := range s.blocks {
		if line >= b.start && line <= b.end && b.rules.covers(ruleID) {
			return true
		}
	}
	return false
}

// Filter splits diags into kept and suppressed, preserving order.
func Filter(diags []diag.Diagnostic, s *Set) (kept, suppressed []diag.Diagnostic) {
	if s.Empty() {
		return diags, nil
	}
	kept = diags[:0:0]
	for _, d := range diags {
		if s.IsSuppressed(d.RuleID, d.Location.Line) {
			suppressed = append(suppressed, d)
		} else {
			kept = append(kept, d)
		}
	}
	return kept, suppressed
}

func parseRules(list string) ruleSet {
	out := ruleSet{}
	for _, f := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
		out[strings.ToUpper(strings.TrimSpace(f))] = struct{}{}
	}
	return out
}
