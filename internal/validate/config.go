package validate

import (
	"github.com/bmatcuk/doublestar/v4"

	"wixlint/internal/diag"
	"wixlint/internal/sortutil"
)

// ConfigSpec is the neutral view of a project configuration.
type ConfigSpec struct {
	Source         string // file the values came from, for messages
	MinSeverity    string
	Enabled        []string
	Disabled       []string
	Severity       map[string]string
	Categories     []string
	Exclude        []string
	MaxDiagnostics int
	Workers        int
}

// Config validates a project configuration and reports every problem at
// once: unknown severities and categories, malformed glob patterns and
// negative limits.
func Config(c ConfigSpec) error {
	var errs errlist
	prefix := c.Source
	if prefix == "" {
		prefix = "config"
	}

	if c.MinSeverity != "" {
		if _, err := diag.ParseSeverity(c.MinSeverity); err != nil {
			errs.add("%s: min_severity: %v", prefix, err)
		}
	}
	for _, id := range sortutil.Keys(c.Severity) {
		if _, err := diag.ParseSeverity(c.Severity[id]); err != nil {
			errs.add("%s: rules.severity[%s]: %v", prefix, id, err)
		}
	}
	for _, cat := range c.Categories {
		if !diag.Category(cat).Valid() {
			errs.add("%s: rules.categories: unknown category %q", prefix, cat)
		}
	}
	for _, f := range []struct {
		name  string
		globs []string
	}{
		{"rules.enabled", c.Enabled},
		{"rules.disabled", c.Disabled},
		{"exclude", c.Exclude},
	} {
		for _, g := range f.globs {
			if !doublestar.ValidatePattern(g) {
				errs.add("%s: %s: malformed pattern %q", prefix, f.name, g)
			}
		}
	}
	if c.MaxDiagnostics < 0 {
		errs.add("%s: max_diagnostics must be >= 0, got %d", prefix, c.MaxDiagnostics)
	}
	if c.Workers < 0 {
		errs.add("%s: workers must be >= 0, got %d", prefix, c.Workers)
	}
	return errs.err()
}
