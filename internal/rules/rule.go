// Package rules binds declarative rules to the document tree.
//
// A Rule is pure data: a target element kind, a condition, a severity and
// a message template. The Engine groups rules by kind so each visited node
// only consults the rules that can apply to it.
package rules

import (
	"wixlint/internal/condition"
	"wixlint/internal/diag"
)

// AnyElement targets every node regardless of kind.
const AnyElement = "*"

// Rule is one unit of analysis policy.
type Rule struct {
	ID            string              `yaml:"id" json:"id"`
	Name          string              `yaml:"name" json:"name,omitempty"`
	Description   string              `yaml:"description" json:"description,omitempty"`
	Severity      diag.Severity       `yaml:"severity" json:"severity"`
	Category      diag.Category       `yaml:"category" json:"category,omitempty"`
	Element       string              `yaml:"element" json:"element"`
	Condition     condition.Condition `yaml:"condition" json:"-"`
	Message       string              `yaml:"message" json:"message"`
	Help          string              `yaml:"help" json:"help,omitempty"`
	Fix           *diag.Fix           `yaml:"fix" json:"fix,omitempty"`
	Tags          []string            `yaml:"tags" json:"tags,omitempty"`
	Enabled       *bool               `yaml:"enabled" json:"enabled,omitempty"`
	EffortMinutes int                 `yaml:"effort_minutes" json:"effort_minutes,omitempty"`
	DocURL        string              `yaml:"doc_url" json:"doc_url,omitempty"`
}

// IsEnabled reports the rule's own default. Rules are on unless they say
// otherwise.
func (r Rule) IsEnabled() bool { return r.Enabled == nil || *r.Enabled }

// Targets reports whether the rule applies to nodes of kind.
func (r Rule) Targets(kind string) bool { return r.Element == AnyElement || r.Element == kind }
