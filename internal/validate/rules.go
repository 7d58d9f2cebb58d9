// Package validate checks declarative rule sets before they reach the
// engine. It collects every problem it finds and reports them as a single
// error, so a rule author sees all mistakes in one run.
//
// Regex problems are reported separately as warnings: the evaluator treats
// a bad pattern as "no match", so a rule with one still loads.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"wixlint/internal/diag"
)

// RuleSpec is the neutral view of a rule the checks operate on.
type RuleSpec struct {
	Index    int // position in the rule file, used in messages
	ID       string
	Element  string
	Severity string
	Category string
	Message  string
	Patterns []string
}

var reRuleID = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*(-[A-Za-z0-9]+)*$`)

// Rules validates a rule set:
//
//   - ids are non-empty, well formed and unique
//   - every rule targets an element kind ("*" for any)
//   - severity and category, when set, are known
//   - messages are non-empty
//
// Patterns that do not compile are returned as warnings, one per pattern.
func Rules(specs []RuleSpec) (warnings []string, err error) {
	var errs errlist
	seen := make(map[string]int, len(specs))

	for _, r := range specs {
		prefix := fmt.Sprintf("rules[%d] (%s)", r.Index, r.ID)

		switch id := strings.TrimSpace(r.ID); {
		case id == "":
			errs.add("%s: id must be non-empty", prefix)
		case !reRuleID.MatchString(id):
			errs.add("%s: id must look like ABC-123, got %q", prefix, r.ID)
		default:
			if first, dup := seen[id]; dup {
				errs.add("%s: duplicate rule id (first at rules[%d])", prefix, first)
			} else {
				seen[id] = r.Index
			}
		}

		if strings.TrimSpace(r.Element) == "" {
			errs.add("%s: element must be non-empty (use \"*\" for any element)", prefix)
		}
		if r.Severity != "" {
			if _, perr := diag.ParseSeverity(r.Severity); perr != nil {
				errs.add("%s: %v", prefix, perr)
			}
		}
		if r.Category != "" && !diag.Category(r.Category).Valid() {
			errs.add("%s: unknown category %q", prefix, r.Category)
		}
		if strings.TrimSpace(r.Message) == "" {
			errs.add("%s: message must be non-empty", prefix)
		}

		for _, p := range r.Patterns {
			if _, cerr := regexp.Compile(p); cerr != nil {
				warnings = append(warnings, fmt.Sprintf("%s: invalid pattern %q: %v", prefix, p, cerr))
			}
		}
	}
	return warnings, errs.err()
}

// errlist aggregates multiple validation issues into a single error.
type errlist struct {
	msgs []string
}

func (e *errlist) add(format string, args ...any) {
	if e == nil {
		return
	}
	e.msgs = append(e.msgs, fmt.Sprintf(format, args...))
}

func (e *errlist) err() error {
	if e == nil || len(e.msgs) == 0 {
		return nil
	}
	return errors.New(strings.Join(e.msgs, "\n"))
}
