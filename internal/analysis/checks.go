package analysis

import (
	"errors"
	"fmt"
	"strings"

	"wixlint/internal/deps"
	"wixlint/internal/diag"
	"wixlint/internal/document"
	"wixlint/internal/symbols"
)

// Check ids emitted by the analyzer itself rather than by declarative rules.
const (
	CheckParse        = "PARSE-001"
	CheckReference    = "VAL-REF-001"
	CheckDuplicate    = "VAL-DUP-001"
	CheckOrphan       = "DEAD-003"
	CheckDependencies = "DEP-001"
)

// Check describes a built-in check. Checks obey the same selection,
// severity override and minimum severity settings as rules.
type Check struct {
	ID       string
	Name     string
	Severity diag.Severity
	Category diag.Category
	Help     string
}

// Checks lists the built-in checks.
var Checks = []Check{
	{
		ID:       CheckParse,
		Name:     "Malformed XML",
		Severity: diag.SeverityBlocker,
		Category: diag.CategoryValidation,
		Help:     "Fix the XML syntax error; no other check can run on this file",
	},
	{
		ID:       CheckReference,
		Name:     "Unresolved reference",
		Severity: diag.SeverityHigh,
		Category: diag.CategoryValidation,
	},
	{
		ID:       CheckDuplicate,
		Name:     "Duplicate definition",
		Severity: diag.SeverityHigh,
		Category: diag.CategoryValidation,
		Help:     "Ids must be unique per element type across the whole project",
	},
	{
		ID:       CheckOrphan,
		Name:     "Component not in any Feature",
		Severity: diag.SeverityHigh,
		Category: diag.CategoryDeadCode,
		Help:     "Components must be referenced by a Feature to be installed",
	},
	{
		ID:       CheckDependencies,
		Name:     "Circular dependency",
		Severity: diag.SeverityHigh,
		Category: diag.CategoryValidation,
		Help:     "Break the cycle in the After/Before ordering",
	},
}

func (c Check) emit(sev diag.Severity, msg string, loc diag.Location) diag.Diagnostic {
	return diag.Diagnostic{
		RuleID:   c.ID,
		Severity: sev,
		Category: c.Category,
		Message:  msg,
		Location: loc,
		Help:     c.Help,
	}
}

// references reports every reference in doc without a definition anywhere
// in the project.
func references(c Check, sev diag.Severity, doc *document.Document, res symbols.Resolver) []diag.Diagnostic {
	var out []diag.Diagnostic
	doc.Walk(func(id document.NodeID) bool {
		kind := doc.Kind(id)
		if !symbols.IsReferenceElement(kind) {
			return true
		}
		ref, ok := doc.Attr(id, "Id")
		if !ok || ref == "" {
			return true
		}
		if !res.HasDefinition(kind, ref) {
			target := strings.TrimSuffix(kind, "Ref")
			d := c.emit(sev, fmt.Sprintf("No %s found with Id '%s'", target, ref), diag.NodeLocation(doc, id))
			d.Help = fmt.Sprintf("Ensure a %s with Id='%s' is defined in this file or an included file", target, ref)
			out = append(out, d)
		}
		return true
	})
	return out
}

// repeatable kinds are legitimately declared in many places.
var repeatable = map[string]bool{
	"StandardDirectory": true,
	"Fragment":          true,
}

// duplicates reports the second definition of every duplicated key that
// lives in doc.
func duplicates(c Check, sev diag.Severity, doc *document.Document, res symbols.Resolver) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, dup := range res.Duplicates() {
		if dup.Second.Location.File != doc.Path || repeatable[dup.First.Kind] || repeatable[dup.Second.Kind] {
			continue
		}
		d := c.emit(sev,
			fmt.Sprintf("Duplicate %s definition '%s' (first defined as %s at %s)",
				dup.Second.Kind, dup.Second.ID, dup.First.Kind, dup.First.Location),
			dup.Second.Location)
		d.Related = []diag.Related{{Location: dup.First.Location, Message: "first definition"}}
		out = append(out, d)
	}
	return out
}

// grouping ancestors place a component into a feature tree without an
// explicit reference.
var grouping = map[string]bool{
	"Feature":        true,
	"FeatureGroup":   true,
	"FeatureRef":     true,
	"ComponentGroup": true,
	"Module":         true,
}

// orphans reports components and component groups defined in doc that no
// reference anywhere points at and no grouping ancestor includes.
func orphans(c Check, sev diag.Severity, doc *document.Document, res symbols.Resolver) []diag.Diagnostic {
	var out []diag.Diagnostic
	doc.Walk(func(id document.NodeID) bool {
		kind := doc.Kind(id)
		if kind != "Component" && kind != "ComponentGroup" {
			return true
		}
		cid, ok := doc.Attr(id, "Id")
		if !ok || cid == "" || res.IsReferenced(kind, cid) {
			return true
		}
		for _, a := range doc.Ancestors(id) {
			if grouping[doc.Kind(a)] {
				return true
			}
		}
		out = append(out, c.emit(sev,
			fmt.Sprintf("Component '%s' is not included in any Feature", cid),
			diag.NodeLocation(doc, id)))
		return true
	})
	return out
}

// cycles reports each dependency cycle of doc at its first member.
func cycles(c Check, sev diag.Severity, doc *document.Document) []diag.Diagnostic {
	g := deps.Extract(doc)
	if g.Len() == 0 {
		return nil
	}
	var out []diag.Diagnostic
	for _, cyc := range g.DetectCycles() {
		n, _ := g.Get(cyc[0])
		msg := (&deps.CycleError{Cycle: cyc}).Error()
		out = append(out, c.emit(sev, msg, n.Dependency.Location))
	}
	return out
}

// parseFailure turns a parse error into the file's only diagnostic.
func parseFailure(c Check, sev diag.Severity, path string, err error) diag.Diagnostic {
	loc := diag.Location{File: path, Line: 1, Col: 1}
	msg := err.Error()
	var pe *document.ParseError
	if errors.As(err, &pe) {
		msg = pe.Msg
		if pe.Line > 0 {
			loc.Line = pe.Line
		}
		if pe.Col > 0 {
			loc.Col = pe.Col
		}
	}
	loc.EndLine, loc.EndCol = loc.Line, loc.Col
	return c.emit(sev, "Malformed XML: "+msg, loc)
}
