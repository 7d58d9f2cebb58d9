package document

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"wixlint/internal/textutil"
)

// ParseError reports malformed input. Line and Col are 1-based; Col may be 0
// when the decoder only knows the line.
type ParseError struct {
	File string
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Col > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

type openElem struct {
	id   NodeID
	text strings.Builder
}

// Parse builds a Document from XML text. Element kinds are local names (the
// namespace prefix is dropped); namespace declarations are kept as
// "xmlns" and "xmlns:<prefix>" attributes.
func Parse(source, path string) (*Document, error) {
	doc := &Document{Path: path, Source: source}
	lines := textutil.NewLineIndex(source)
	dec := xml.NewDecoder(strings.NewReader(source))
	dec.Strict = true

	var stack []*openElem
	fail := func(off int, msg string) (*Document, error) {
		l, c := lines.Position(off)
		return nil, &ParseError{File: path, Line: l, Col: c, Msg: msg}
	}

	for {
		before := int(dec.InputOffset())
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var se *xml.SyntaxError
			if errors.As(err, &se) {
				return nil, &ParseError{File: path, Line: se.Line, Msg: se.Msg}
			}
			return fail(before, err.Error())
		}
		after := int(dec.InputOffset())

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && len(doc.nodes) > 0 {
				return fail(before, "multiple root elements")
			}
			parent := NoParent
			if len(stack) > 0 {
				parent = stack[len(stack)-1].id
			}
			id := NodeID(len(doc.nodes))
			sl, sc := lines.Position(before)
			doc.nodes = append(doc.nodes, node{
				kind:   t.Name.Local,
				attrs:  convertAttrs(t.Attr),
				parent: parent,
				rng:    Range{StartLine: sl, StartCol: sc},
				span:   span{start: before, tagEnd: after},
			})
			if parent != NoParent {
				doc.nodes[parent].children = append(doc.nodes[parent].children, id)
			}
			stack = append(stack, &openElem{id: id})

		case xml.EndElement:
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			n := &doc.nodes[top.id]
			// A self-closing tag yields a synthetic end with no input consumed.
			n.span.selfClosing = after == n.span.tagEnd
			if n.span.selfClosing {
				n.span.innerEnd = n.span.tagEnd
			} else {
				n.span.innerEnd = before
			}
			n.span.end = after
			n.rng.EndLine, n.rng.EndCol = lines.Position(after)
			n.text = strings.TrimSpace(top.text.String())

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			} else if strings.TrimSpace(string(t)) != "" {
				return fail(before, "text outside of root element")
			}
		}
	}

	if len(stack) > 0 {
		return fail(len(source), fmt.Sprintf("element <%s> is not closed", doc.nodes[stack[len(stack)-1].id].kind))
	}
	if len(doc.nodes) == 0 {
		return fail(0, "document has no root element")
	}
	return doc, nil
}

func convertAttrs(in []xml.Attr) []Attr {
	if len(in) == 0 {
		return nil
	}
	out := make([]Attr, 0, len(in))
	for _, a := range in {
		name := a.Name.Local
		switch {
		case a.Name.Space == "xmlns":
			name = "xmlns:" + a.Name.Local
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			name = "xmlns"
		}
		out = append(out, Attr{Name: name, Value: a.Value})
	}
	return out
}
