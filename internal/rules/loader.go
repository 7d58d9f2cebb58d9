package rules

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"wixlint/internal/condition"
	"wixlint/internal/diag"
	"wixlint/internal/validate"
)

//go:embed builtin.yaml
var builtinYAML []byte

// RuleSet is a named collection of rules as stored in a rule file.
type RuleSet struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description" json:"description,omitempty"`
	Rules       []Rule `yaml:"rules" json:"rules"`
}

// LoadOptions tunes rule loading.
type LoadOptions struct {
	// Strict turns pattern warnings into load errors.
	Strict bool
	// Logger receives authoring warnings. Nil discards them.
	Logger logrus.FieldLogger
	// Source names the input in messages (a file path or "<builtin>").
	Source string
}

// rawRule keeps severity and category as text so problems can be
// collected by validate instead of failing on the first one.
type rawRule struct {
	ID            string              `yaml:"id"`
	Name          string              `yaml:"name"`
	Description   string              `yaml:"description"`
	Severity      string              `yaml:"severity"`
	Category      string              `yaml:"category"`
	Element       string              `yaml:"element"`
	Condition     condition.Condition `yaml:"condition"`
	Message       string              `yaml:"message"`
	Help          string              `yaml:"help"`
	Fix           *diag.Fix           `yaml:"fix"`
	Tags          []string            `yaml:"tags"`
	Enabled       *bool               `yaml:"enabled"`
	EffortMinutes int                 `yaml:"effort_minutes"`
	DocURL        string              `yaml:"doc_url"`
}

type rawRuleSet struct {
	Name        string    `yaml:"name"`
	Version     string    `yaml:"version"`
	Description string    `yaml:"description"`
	Rules       []rawRule `yaml:"rules"`
}

// Load decodes a YAML (or JSON) rule set and validates it. Structural
// problems are returned as one aggregated error. Patterns that do not
// compile are logged and the rule is kept; the evaluator treats them as
// never matching.
func Load(r io.Reader, opt LoadOptions) (*RuleSet, error) {
	src := opt.Source
	if src == "" {
		src = "<input>"
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var raw rawRuleSet
	if err := dec.Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("rules: decode %s: %w", src, err)
	}

	specs := make([]validate.RuleSpec, len(raw.Rules))
	for i, r := range raw.Rules {
		specs[i] = validate.RuleSpec{
			Index:    i,
			ID:       r.ID,
			Element:  r.Element,
			Severity: r.Severity,
			Category: r.Category,
			Message:  r.Message,
			Patterns: condition.Patterns(r.Condition),
		}
	}
	warnings, err := validate.Rules(specs)
	if err != nil {
		return nil, fmt.Errorf("rules: invalid rule set %s:\n%w", src, err)
	}
	if len(warnings) > 0 {
		if opt.Strict {
			return nil, fmt.Errorf("rules: invalid patterns in %s:\n%s", src, strings.Join(warnings, "\n"))
		}
		log := opt.Logger
		if log == nil {
			log = discard()
		}
		for _, w := range warnings {
			log.WithFields(logrus.Fields{"source": src}).Warn(w)
		}
	}

	set := &RuleSet{Name: raw.Name, Version: raw.Version, Description: raw.Description}
	for _, r := range raw.Rules {
		set.Rules = append(set.Rules, r.toRule())
	}
	return set, nil
}

func (r rawRule) toRule() Rule {
	sev := diag.SeverityMedium
	if r.Severity != "" {
		sev, _ = diag.ParseSeverity(r.Severity)
	}
	cat := diag.CategoryBestPractice
	if r.Category != "" {
		cat = diag.Category(r.Category)
	}
	return Rule{
		ID:            strings.TrimSpace(r.ID),
		Name:          r.Name,
		Description:   r.Description,
		Severity:      sev,
		Category:      cat,
		Element:       r.Element,
		Condition:     r.Condition,
		Message:       r.Message,
		Help:          r.Help,
		Fix:           r.Fix,
		Tags:          r.Tags,
		Enabled:       r.Enabled,
		EffortMinutes: r.EffortMinutes,
		DocURL:        r.DocURL,
	}
}

// LoadFile loads a rule set from disk.
func LoadFile(path string, opt LoadOptions) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	if opt.Source == "" {
		opt.Source = path
	}
	return Load(bytes.NewReader(data), opt)
}

var builtin = sync.OnceValues(func() (*RuleSet, error) {
	return Load(bytes.NewReader(builtinYAML), LoadOptions{Strict: true, Source: "<builtin>"})
})

// Builtin returns the embedded default WiX rule set. Callers must not modify
// the returned rules.
func Builtin() (*RuleSet, error) { return builtin() }

func discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
