package document

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoSource is returned by the edit helpers for trees that were not parsed
// from text.
var ErrNoSource = errors.New("document: node has no source span")

// Edit is a byte-range replacement in Document.Source.
type Edit struct {
	Start, End int
	Text       string
}

// Apply returns src with the edit applied.
func (e Edit) Apply(src string) string {
	return src[:e.Start] + e.Text + src[e.End:]
}

func (d *Document) spanOf(id NodeID) (span, error) {
	if !d.valid(id) {
		return span{}, fmt.Errorf("document: unknown node %d", id)
	}
	s := d.nodes[id].span
	if s.end == 0 || d.Source == "" {
		return span{}, ErrNoSource
	}
	return s, nil
}

// startTagClose returns the offset of the start tag's closing "/>" or ">".
func (d *Document) startTagClose(s span) int {
	if s.selfClosing {
		return s.tagEnd - 2
	}
	return s.tagEnd - 1
}

func attrPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`\s+` + regexp.QuoteMeta(name) + `\s*=\s*("[^"]*"|'[^']*')`)
}

// SetAttrEdit adds the attribute, or replaces its value when present.
func (d *Document) SetAttrEdit(id NodeID, name, value string) (Edit, error) {
	s, err := d.spanOf(id)
	if err != nil {
		return Edit{}, err
	}
	tag := d.Source[s.start:s.tagEnd]
	if loc := attrPattern(name).FindStringSubmatchIndex(tag); loc != nil {
		return Edit{Start: s.start + loc[2], End: s.start + loc[3], Text: quoteAttr(value)}, nil
	}
	at := d.startTagClose(s)
	// Trim whitespace before the closing so the new attribute sits flush.
	for at > s.start && (d.Source[at-1] == ' ' || d.Source[at-1] == '\t') {
		at--
	}
	return Edit{Start: at, End: at, Text: " " + name + "=" + quoteAttr(value)}, nil
}

// RemoveAttrEdit deletes the attribute. Removing an absent attribute is an
// error so callers notice stale fixes.
func (d *Document) RemoveAttrEdit(id NodeID, name string) (Edit, error) {
	s, err := d.spanOf(id)
	if err != nil {
		return Edit{}, err
	}
	tag := d.Source[s.start:s.tagEnd]
	loc := attrPattern(name).FindStringIndex(tag)
	if loc == nil {
		return Edit{}, fmt.Errorf("document: attribute %q not present", name)
	}
	return Edit{Start: s.start + loc[0], End: s.start + loc[1]}, nil
}

// InsertChildEdit inserts markup as the first or last child of id.
func (d *Document) InsertChildEdit(id NodeID, markup string, first bool) (Edit, error) {
	s, err := d.spanOf(id)
	if err != nil {
		return Edit{}, err
	}
	if s.selfClosing {
		at := d.startTagClose(s)
		text := ">" + markup + "</" + d.rawName(s) + ">"
		return Edit{Start: at, End: s.tagEnd, Text: text}, nil
	}
	if first {
		return Edit{Start: s.tagEnd, End: s.tagEnd, Text: markup}, nil
	}
	return Edit{Start: s.innerEnd, End: s.innerEnd, Text: markup}, nil
}

// RemoveEdit deletes the whole element.
func (d *Document) RemoveEdit(id NodeID) (Edit, error) {
	s, err := d.spanOf(id)
	if err != nil {
		return Edit{}, err
	}
	return Edit{Start: s.start, End: s.end}, nil
}

// ReplaceTextEdit replaces everything between the start and end tags.
func (d *Document) ReplaceTextEdit(id NodeID, text string) (Edit, error) {
	s, err := d.spanOf(id)
	if err != nil {
		return Edit{}, err
	}
	if s.selfClosing {
		at := d.startTagClose(s)
		return Edit{Start: at, End: s.tagEnd, Text: ">" + escapeText(text) + "</" + d.rawName(s) + ">"}, nil
	}
	return Edit{Start: s.tagEnd, End: s.innerEnd, Text: escapeText(text)}, nil
}

// rawName returns the qualified tag name as written, prefix included.
func (d *Document) rawName(s span) string {
	tag := d.Source[s.start+1 : s.tagEnd]
	end := strings.IndexAny(tag, " \t\r\n/>")
	if end < 0 {
		return tag
	}
	return tag[:end]
}

var attrEscaper = strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `"`, "&quot;")
var textEscaper = strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;")

func quoteAttr(v string) string  { return `"` + attrEscaper.Replace(v) + `"` }
func escapeText(v string) string { return textEscaper.Replace(v) }

// ElementMarkup renders a self-closing element with the given attributes.
func ElementMarkup(kind string, attrs []Attr) string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(kind)
	for _, a := range attrs {
		b.WriteString(" ")
		b.WriteString(a.Name)
		b.WriteString("=")
		b.WriteString(quoteAttr(a.Value))
	}
	b.WriteString(" />")
	return b.String()
}
