package diag

import "wixlint/internal/document"

// NodeLocation converts a node's range into a Location in doc's file.
func NodeLocation(doc *document.Document, id document.NodeID) Location {
	r := doc.Range(id)
	return Location{
		File:    doc.Path,
		Line:    r.StartLine,
		Col:     r.StartCol,
		EndLine: r.EndLine,
		EndCol:  r.EndCol,
	}
}
