package rules

import (
	"errors"
	"fmt"

	"wixlint/internal/diag"
	"wixlint/internal/diff"
	"wixlint/internal/document"
)

// ErrNoNode is returned when a diagnostic's location does not start an
// element of the document.
var ErrNoNode = errors.New("rules: no element at diagnostic location")

// ApplyFix returns doc.Source with fix applied to node id.
func ApplyFix(doc *document.Document, id document.NodeID, fix diag.Fix) (string, error) {
	a := fix.Action
	var (
		e   document.Edit
		err error
	)
	switch a.Kind {
	case diag.FixAddAttribute, diag.FixReplaceAttribute:
		e, err = doc.SetAttrEdit(id, a.Name, a.Value)
	case diag.FixRemoveAttribute:
		e, err = doc.RemoveAttrEdit(id, a.Name)
	case diag.FixAddElement:
		attrs := make([]document.Attr, len(a.Attributes))
		for i, at := range a.Attributes {
			attrs[i] = document.Attr{Name: at.Name, Value: at.Value}
		}
		e, err = doc.InsertChildEdit(id, document.ElementMarkup(a.Element, attrs), a.Position == "first")
	case diag.FixRemoveElement:
		e, err = doc.RemoveEdit(id)
	case diag.FixReplaceText:
		e, err = doc.ReplaceTextEdit(id, a.Value)
	default:
		return "", fmt.Errorf("rules: unknown fix kind %q", a.Kind)
	}
	if err != nil {
		return "", err
	}
	return e.Apply(doc.Source), nil
}

// Preview renders the fix as a unified diff against doc.Source.
func Preview(doc *document.Document, id document.NodeID, fix diag.Fix) (string, error) {
	fixed, err := ApplyFix(doc, id, fix)
	if err != nil {
		return "", err
	}
	body, _ := diff.Unified("a/"+doc.Path, "b/"+doc.Path, []byte(doc.Source), []byte(fixed), diff.Options{})
	return body, nil
}

// PreviewDiagnostic locates the element a diagnostic points at and previews
// its fix. Diagnostics without a fix yield an empty preview.
func PreviewDiagnostic(doc *document.Document, d diag.Diagnostic) (string, error) {
	if d.Fix == nil {
		return "", nil
	}
	id, ok := NodeAt(doc, d.Location.Line, d.Location.Col)
	if !ok {
		return "", ErrNoNode
	}
	return Preview(doc, id, *d.Fix)
}

// NodeAt finds the element whose start tag begins at line:col.
func NodeAt(doc *document.Document, line, col int) (document.NodeID, bool) {
	found := document.NoParent
	doc.Walk(func(id document.NodeID) bool {
		if found != document.NoParent {
			return false
		}
		r := doc.Range(id)
		if r.StartLine == line && r.StartCol == col {
			found = id
			return false
		}
		return r.StartLine <= line
	})
	return found, found != document.NoParent
}
