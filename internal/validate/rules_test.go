package validate

import (
	"strings"
	"testing"
)

func TestRulesAcceptsWellFormedSet(t *testing.T) {
	warns, err := Rules([]RuleSpec{
		{Index: 0, ID: "SEC-001", Element: "ServiceInstall", Severity: "high", Category: "security", Message: "m"},
		{Index: 1, ID: "BP-IDIOM-002", Element: "*", Message: "m", Patterns: []string{`^\{[0-9A-F-]+\}$`}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
}

func TestRulesAggregatesEveryProblem(t *testing.T) {
	_, err := Rules([]RuleSpec{
		{Index: 0, ID: "", Element: "File", Message: "m"},
		{Index: 1, ID: "X-1", Element: "", Message: ""},
		{Index: 2, ID: "X-1", Element: "File", Severity: "urgent", Category: "style", Message: "m"},
		{Index: 3, ID: "bad id", Element: "File", Message: "m"},
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	msg := err.Error()
	for _, want := range []string{
		"rules[0] (): id must be non-empty",
		"rules[1] (X-1): element must be non-empty",
		"rules[1] (X-1): message must be non-empty",
		"duplicate rule id (first at rules[1])",
		`unknown severity "urgent"`,
		`unknown category "style"`,
		"id must look like ABC-123",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q does not mention %q", msg, want)
		}
	}
	if n := len(strings.Split(msg, "\n")); n != 7 {
		t.Fatalf("expected 7 aggregated problems, got %d:\n%s", n, msg)
	}
}

func TestRulesReportsBadPatternsAsWarnings(t *testing.T) {
	warns, err := Rules([]RuleSpec{
		{Index: 0, ID: "R-1", Element: "File", Message: "m", Patterns: []string{"[unclosed", "ok"}},
	})
	if err != nil {
		t.Fatalf("pattern problems must not be errors: %v", err)
	}
	if len(warns) != 1 || !strings.Contains(warns[0], "[unclosed") {
		t.Fatalf("warnings = %v", warns)
	}
}
