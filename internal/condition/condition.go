// Package condition implements the small predicate language rules use to
// decide whether a node is a finding.
//
// A Condition is a tagged value: Op selects the predicate and only the
// operand fields that predicate reads are set. Conditions are immutable once
// built and are evaluated many times by an Evaluator, which memoizes compiled
// regular expressions.
package condition

import (
	"fmt"
	"strings"
)

// Op selects the predicate a Condition evaluates.
type Op int

const (
	OpAlways Op = iota
	OpNever
	OpAttributeMissing
	OpAttributeExists
	OpAttributeEquals
	OpAttributeNotEquals
	OpAttributeMatches
	OpAttributeNotMatches
	OpAttributeIn
	OpAttributeNotIn
	OpHasChild
	OpMissingChild
	OpChildCount
	OpParentIs
	OpParentNot
	OpParentIn
	OpParentNotIn
	OpDepthExceeds
	OpTextMatches
	OpTextContains
	OpAll
	OpAny
	OpNot
)

var opNames = [...]string{
	OpAlways:              "always",
	OpNever:               "never",
	OpAttributeMissing:    "attribute_missing",
	OpAttributeExists:     "attribute_exists",
	OpAttributeEquals:     "attribute_equals",
	OpAttributeNotEquals:  "attribute_not_equals",
	OpAttributeMatches:    "attribute_matches",
	OpAttributeNotMatches: "attribute_not_matches",
	OpAttributeIn:         "attribute_in",
	OpAttributeNotIn:      "attribute_not_in",
	OpHasChild:            "has_child",
	OpMissingChild:        "missing_child",
	OpChildCount:          "child_count",
	OpParentIs:            "parent_is",
	OpParentNot:           "parent_not",
	OpParentIn:            "parent_in",
	OpParentNotIn:         "parent_not_in",
	OpDepthExceeds:        "depth_exceeds",
	OpTextMatches:         "text_matches",
	OpTextContains:        "text_contains",
	OpAll:                 "all",
	OpAny:                 "any",
	OpNot:                 "not",
}

func (o Op) String() string {
	if int(o) >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

func opByName(name string) (Op, bool) {
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}
	return 0, false
}

// CompareOp is the comparison used by ChildCount.
type CompareOp int

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

var compareSymbols = [...]string{Eq: "==", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">="}

func (c CompareOp) String() string {
	if int(c) >= 0 && int(c) < len(compareSymbols) {
		return compareSymbols[c]
	}
	return "?"
}

// ParseCompareOp accepts symbolic and named forms: "==" "=" "eq", "!=" "<>"
// "ne", "<" "lt", "<=" "le", ">" "gt", ">=" "ge".
func ParseCompareOp(s string) (CompareOp, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "==", "=", "eq":
		return Eq, nil
	case "!=", "<>", "ne":
		return Ne, nil
	case "<", "lt":
		return Lt, nil
	case "<=", "le":
		return Le, nil
	case ">", "gt":
		return Gt, nil
	case ">=", "ge":
		return Ge, nil
	}
	return Eq, fmt.Errorf("unknown comparison operator %q", s)
}

// Compare applies the operator to a and b.
func (c CompareOp) Compare(a, b int) bool {
	switch c {
	case Eq:
		return a == b
	case Ne:
		return a != b
	case Lt:
		return a < b
	case Le:
		return a <= b
	case Gt:
		return a > b
	case Ge:
		return a >= b
	}
	return false
}

// Condition is one node of a predicate tree.
type Condition struct {
	Op Op

	Name     string   // attribute name
	Value    string   // attribute value or text substring
	Values   []string // attribute value set
	Pattern  string   // regular expression
	Element  string   // child or parent kind
	Elements []string // parent kind set
	Compare  CompareOp
	Count    int // ChildCount operand or DepthExceeds maximum

	Children []Condition // All, Any, Not (one child)
}

func AttributeMissing(name string) Condition { return Condition{Op: OpAttributeMissing, Name: name} }
func AttributeExists(name string) Condition  { return Condition{Op: OpAttributeExists, Name: name} }

func AttributeEquals(name, value string) Condition {
	return Condition{Op: OpAttributeEquals, Name: name, Value: value}
}

func AttributeNotEquals(name, value string) Condition {
	return Condition{Op: OpAttributeNotEquals, Name: name, Value: value}
}

func AttributeMatches(name, pattern string) Condition {
	return Condition{Op: OpAttributeMatches, Name: name, Pattern: pattern}
}

func AttributeNotMatches(name, pattern string) Condition {
	return Condition{Op: OpAttributeNotMatches, Name: name, Pattern: pattern}
}

func AttributeIn(name string, values ...string) Condition {
	return Condition{Op: OpAttributeIn, Name: name, Values: values}
}

func AttributeNotIn(name string, values ...string) Condition {
	return Condition{Op: OpAttributeNotIn, Name: name, Values: values}
}

func HasChild(kind string) Condition     { return Condition{Op: OpHasChild, Element: kind} }
func MissingChild(kind string) Condition { return Condition{Op: OpMissingChild, Element: kind} }

func ChildCount(kind string, op CompareOp, value int) Condition {
	return Condition{Op: OpChildCount, Element: kind, Compare: op, Count: value}
}

func ParentIs(kind string) Condition  { return Condition{Op: OpParentIs, Element: kind} }
func ParentNot(kind string) Condition { return Condition{Op: OpParentNot, Element: kind} }

func ParentIn(kinds ...string) Condition    { return Condition{Op: OpParentIn, Elements: kinds} }
func ParentNotIn(kinds ...string) Condition { return Condition{Op: OpParentNotIn, Elements: kinds} }

func DepthExceeds(max int) Condition { return Condition{Op: OpDepthExceeds, Count: max} }

func TextMatches(pattern string) Condition { return Condition{Op: OpTextMatches, Pattern: pattern} }
func TextContains(sub string) Condition    { return Condition{Op: OpTextContains, Value: sub} }

func All(cs ...Condition) Condition { return Condition{Op: OpAll, Children: cs} }
func Any(cs ...Condition) Condition { return Condition{Op: OpAny, Children: cs} }
func Not(c Condition) Condition     { return Condition{Op: OpNot, Children: []Condition{c}} }

func Always() Condition { return Condition{Op: OpAlways} }
func Never() Condition  { return Condition{Op: OpNever} }

// Patterns returns every regular expression used anywhere in c, in
// depth-first order. The rule loader uses it to validate rules eagerly.
func Patterns(c Condition) []string {
	var out []string
	var visit func(Condition)
	visit = func(c Condition) {
		switch c.Op {
		case OpAttributeMatches, OpAttributeNotMatches, OpTextMatches:
			out = append(out, c.Pattern)
		}
		for _, ch := range c.Children {
			visit(ch)
		}
	}
	visit(c)
	return out
}

// String renders a compact, stable form, e.g.
// all(attribute_exists(Guid), attribute_not_equals(Guid, "*")).
func (c Condition) String() string {
	switch c.Op {
	case OpAlways, OpNever:
		return c.Op.String()
	case OpAttributeMissing, OpAttributeExists:
		return fmt.Sprintf("%s(%s)", c.Op, c.Name)
	case OpAttributeEquals, OpAttributeNotEquals:
		return fmt.Sprintf("%s(%s, %q)", c.Op, c.Name, c.Value)
	case OpAttributeMatches, OpAttributeNotMatches:
		return fmt.Sprintf("%s(%s, /%s/)", c.Op, c.Name, c.Pattern)
	case OpAttributeIn, OpAttributeNotIn:
		return fmt.Sprintf("%s(%s, [%s])", c.Op, c.Name, strings.Join(c.Values, ", "))
	case OpHasChild, OpMissingChild, OpParentIs, OpParentNot:
		return fmt.Sprintf("%s(%s)", c.Op, c.Element)
	case OpChildCount:
		return fmt.Sprintf("%s(%s %s %d)", c.Op, c.Element, c.Compare, c.Count)
	case OpParentIn, OpParentNotIn:
		return fmt.Sprintf("%s([%s])", c.Op, strings.Join(c.Elements, ", "))
	case OpDepthExceeds:
		return fmt.Sprintf("%s(%d)", c.Op, c.Count)
	case OpTextMatches:
		return fmt.Sprintf("%s(/%s/)", c.Op, c.Pattern)
	case OpTextContains:
		return fmt.Sprintf("%s(%q)", c.Op, c.Value)
	case OpAll, OpAny, OpNot:
		parts := make([]string, len(c.Children))
		for i, ch := range c.Children {
			parts[i] = ch.String()
		}
		return fmt.Sprintf("%s(%s)", c.Op, strings.Join(parts, ", "))
	}
	return c.Op.String()
}
