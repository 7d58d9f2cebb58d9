package validate

import (
	"strings"
	"testing"
)

func TestConfigAcceptsDefaults(t *testing.T) {
	err := Config(ConfigSpec{
		MinSeverity: "warning",
		Enabled:     []string{"SEC-*", "VAL-REF-001"},
		Severity:    map[string]string{"SEC-001": "blocker"},
		Categories:  []string{"security", "validation"},
		Exclude:     []string{"**/generated/**"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConfigAggregatesEveryProblem(t *testing.T) {
	err := Config(ConfigSpec{
		Source:         ".wixanalyzer.json",
		MinSeverity:    "loud",
		Severity:       map[string]string{"B": "nope", "A": "worse"},
		Categories:     []string{"style"},
		Disabled:       []string{"SEC-["},
		MaxDiagnostics: -1,
		Workers:        -2,
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	lines := strings.Split(err.Error(), "\n")
	if len(lines) != 7 {
		t.Fatalf("want 7 problems, got %d:\n%v", len(lines), err)
	}
	if !strings.HasPrefix(lines[0], ".wixanalyzer.json: min_severity") {
		t.Fatalf("unexpected first problem: %q", lines[0])
	}
	if !strings.Contains(lines[1], "rules.severity[A]") || !strings.Contains(lines[2], "rules.severity[B]") {
		t.Fatalf("severity problems must be sorted by rule id: %v", lines[1:3])
	}
}
