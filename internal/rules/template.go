package rules

import (
	"strconv"
	"strings"

	"wixlint/internal/document"
)

// RenderMessage expands the placeholders of a message template against a
// node:
//
//	{{kind}}          element kind
//	{{parent}}        parent kind, "(root)" for the root
//	{{id}}            Id, else Name, else "(unnamed)"
//	{{attribute.X}}   value of attribute X (empty when absent)
//	{{children}}      number of direct children
//	{{children.X}}    number of direct children of kind X
//	{{depth}}         number of ancestors
//	{{text}}          trimmed inline text
//
// Unknown placeholders are left as written.
func RenderMessage(tmpl string, doc *document.Document, id document.NodeID) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	var b strings.Builder
	rest := tmpl
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[open+2:], "}}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		name := rest[open+2 : open+2+end]
		b.WriteString(rest[:open])
		if v, ok := placeholder(strings.TrimSpace(name), doc, id); ok {
			b.WriteString(v)
		} else {
			b.WriteString(rest[open : open+2+end+2])
		}
		rest = rest[open+2+end+2:]
	}
	return b.String()
}

func placeholder(name string, doc *document.Document, id document.NodeID) (string, bool) {
	switch name {
	case "kind":
		return doc.Kind(id), true
	case "parent":
		if p, ok := doc.Parent(id); ok {
			return doc.Kind(p), true
		}
		return "(root)", true
	case "id":
		if v, ok := doc.Attr(id, "Id"); ok {
			return v, true
		}
		if v, ok := doc.Attr(id, "Name"); ok {
			return v, true
		}
		return "(unnamed)", true
	case "children":
		return strconv.Itoa(len(doc.Children(id))), true
	case "depth":
		return strconv.Itoa(doc.Depth(id)), true
	case "text":
		return strings.TrimSpace(doc.Text(id)), true
	}
	if attr, ok := strings.CutPrefix(name, "attribute."); ok {
		v, _ := doc.Attr(id, attr)
		return v, true
	}
	if kind, ok := strings.CutPrefix(name, "children."); ok {
		n := 0
		for _, c := range doc.Children(id) {
			if doc.Kind(c) == kind {
				n++
			}
		}
		return strconv.Itoa(n), true
	}
	return "", false
}
