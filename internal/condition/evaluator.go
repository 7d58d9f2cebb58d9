package condition

import (
	"regexp"
	"strings"

	"wixlint/internal/document"
)

// Evaluator evaluates conditions against document nodes.
//
// Its only state is the regex cache, keyed by pattern text. A pattern that
// fails to compile is cached as nil and every predicate using it evaluates
// to false; one malformed rule never aborts an analysis run.
//
// An Evaluator is not safe for concurrent use. Parallel workers each own one.
type Evaluator struct {
	regexes map[string]*regexp.Regexp
}

// NewEvaluator returns an Evaluator with an empty regex cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{regexes: make(map[string]*regexp.Regexp)}
}

// CachedPatterns reports how many distinct patterns have been compiled (or
// rejected) so far.
func (e *Evaluator) CachedPatterns() int { return len(e.regexes) }

func (e *Evaluator) regex(pattern string) *regexp.Regexp {
	if rx, ok := e.regexes[pattern]; ok {
		return rx
	}
	rx, err := regexp.Compile(pattern)
	if err != nil {
		rx = nil
	}
	e.regexes[pattern] = rx
	return rx
}

func (e *Evaluator) matches(pattern, s string) bool {
	rx := e.regex(pattern)
	return rx != nil && rx.MatchString(s)
}

// Eval reports whether c holds for node id of doc.
func (e *Evaluator) Eval(c Condition, doc *document.Document, id document.NodeID) bool {
	switch c.Op {
	case OpAlways:
		return true
	case OpNever:
		return false

	case OpAttributeMissing:
		_, ok := doc.Attr(id, c.Name)
		return !ok
	case OpAttributeExists:
		_, ok := doc.Attr(id, c.Name)
		return ok
	case OpAttributeEquals:
		v, ok := doc.Attr(id, c.Name)
		return ok && v == c.Value
	case OpAttributeNotEquals:
		v, ok := doc.Attr(id, c.Name)
		return !ok || v != c.Value
	case OpAttributeMatches:
		v, ok := doc.Attr(id, c.Name)
		return ok && e.matches(c.Pattern, v)
	case OpAttributeNotMatches:
		v, ok := doc.Attr(id, c.Name)
		if !ok {
			return true
		}
		rx := e.regex(c.Pattern)
		// An unusable pattern makes the predicate false, not vacuously true.
		return rx != nil && !rx.MatchString(v)
	case OpAttributeIn:
		v, ok := doc.Attr(id, c.Name)
		return ok && contains(c.Values, v)
	case OpAttributeNotIn:
		v, ok := doc.Attr(id, c.Name)
		return !ok || !contains(c.Values, v)

	case OpHasChild:
		return countChildren(doc, id, c.Element) > 0
	case OpMissingChild:
		return countChildren(doc, id, c.Element) == 0
	case OpChildCount:
		return c.Compare.Compare(countChildren(doc, id, c.Element), c.Count)

	case OpParentIs:
		p, ok := doc.Parent(id)
		return ok && doc.Kind(p) == c.Element
	case OpParentNot:
		p, ok := doc.Parent(id)
		return !ok || doc.Kind(p) != c.Element
	case OpParentIn:
		p, ok := doc.Parent(id)
		return ok && contains(c.Elements, doc.Kind(p))
	case OpParentNotIn:
		p, ok := doc.Parent(id)
		return !ok || !contains(c.Elements, doc.Kind(p))

	case OpDepthExceeds:
		return doc.Depth(id) > c.Count

	case OpTextMatches:
		return e.matches(c.Pattern, doc.Text(id))
	case OpTextContains:
		return strings.Contains(doc.Text(id), c.Value)

	case OpAll:
		for _, ch := range c.Children {
			if !e.Eval(ch, doc, id) {
				return false
			}
		}
		return true
	case OpAny:
		for _, ch := range c.Children {
			if e.Eval(ch, doc, id) {
				return true
			}
		}
		return false
	case OpNot:
		if len(c.Children) != 1 {
			return false
		}
		return !e.Eval(c.Children[0], doc, id)
	}
	return false
}

func countChildren(doc *document.Document, id document.NodeID, kind string) int {
	n := 0
	for _, ch := range doc.Children(id) {
		if doc.Kind(ch) == kind {
			n++
		}
	}
	return n
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
