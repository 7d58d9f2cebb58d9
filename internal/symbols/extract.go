package symbols

import (
	"wixlint/internal/diag"
	"wixlint/internal/document"
)

// Extract collects definitions and references from one document in
// document order. Elements without an Id attribute are ignored.
func Extract(doc *document.Document) ([]Definition, []Reference) {
	var defs []Definition
	var refs []Reference
	doc.Walk(func(id document.NodeID) bool {
		kind := doc.Kind(id)
		sid, ok := doc.Attr(id, "Id")
		if !ok || sid == "" {
			return true
		}
		switch {
		case IsDefinitionElement(kind):
			defs = append(defs, Definition{
				ID:       sid,
				Kind:     kind,
				Location: diag.NodeLocation(doc, id),
				Detail:   detailFor(doc, id, kind),
			})
		case IsReferenceElement(kind):
			refs = append(refs, Reference{ID: sid, Kind: kind, Location: diag.NodeLocation(doc, id)})
		}
		return true
	})
	return defs, refs
}

func detailFor(doc *document.Document, id document.NodeID, kind string) string {
	switch kind {
	case "Component":
		if g, ok := doc.Attr(id, "Guid"); ok {
			return "Guid: " + g
		}
	case "Package", "Bundle":
		if v, ok := doc.Attr(id, "Version"); ok {
			return "Version: " + v
		}
	}
	return ""
}
