package condition

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes the declarative form used in rule files. Every
// condition is either the scalar "always"/"never" or a single-key mapping
// whose key is the predicate name:
//
//	all:
//	  - attribute_exists: Guid
//	  - attribute_not_equals: {name: Guid, value: "*"}
//	  - child_count: {element: File, op: ">", value: 1}
//	  - not: {parent_is: Directory}
//
// Predicates with a single operand accept it as a bare scalar (or a sequence
// for parent_in / parent_not_in).
func (c *Condition) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.Value {
		case "always":
			*c = Always()
			return nil
		case "never":
			*c = Never()
			return nil
		}
		return nodeErr(n, "unknown condition %q", n.Value)
	case yaml.MappingNode:
	default:
		return nodeErr(n, "condition must be a mapping or always/never")
	}
	if len(n.Content) != 2 {
		return nodeErr(n, "condition must have exactly one key, got %d", len(n.Content)/2)
	}
	key, val := n.Content[0].Value, n.Content[1]
	op, ok := opByName(key)
	if !ok {
		return nodeErr(n.Content[0], "unknown condition %q", key)
	}
	out, err := decodeOperands(op, val)
	if err != nil {
		return err
	}
	*c = out
	return nil
}

type operands struct {
	Name      string   `yaml:"name"`
	Value     string   `yaml:"value"`
	Values    []string `yaml:"values"`
	Pattern   string   `yaml:"pattern"`
	Element   string   `yaml:"element"`
	Elements  []string `yaml:"elements"`
	Substring string   `yaml:"substring"`
	Max       *int     `yaml:"max"`
}

type countOperands struct {
	Element string `yaml:"element"`
	Op      string `yaml:"op"`
	Value   int    `yaml:"value"`
}

func decodeOperands(op Op, val *yaml.Node) (Condition, error) {
	switch op {
	case OpAlways, OpNever:
		return Condition{Op: op}, nil

	case OpAll, OpAny:
		if val.Kind != yaml.SequenceNode {
			return Condition{}, nodeErr(val, "%s expects a list of conditions", op)
		}
		var kids []Condition
		if err := val.Decode(&kids); err != nil {
			return Condition{}, err
		}
		return Condition{Op: op, Children: kids}, nil

	case OpNot:
		var kid Condition
		if err := val.Decode(&kid); err != nil {
			return Condition{}, err
		}
		return Not(kid), nil

	case OpChildCount:
		var co countOperands
		if err := val.Decode(&co); err != nil {
			return Condition{}, err
		}
		cmp, err := ParseCompareOp(co.Op)
		if err != nil {
			return Condition{}, nodeErr(val, "%v", err)
		}
		if co.Element == "" {
			return Condition{}, nodeErr(val, "child_count requires element")
		}
		return ChildCount(co.Element, cmp, co.Value), nil

	case OpDepthExceeds:
		if val.Kind == yaml.ScalarNode {
			max, err := strconv.Atoi(val.Value)
			if err != nil {
				return Condition{}, nodeErr(val, "depth_exceeds expects an integer")
			}
			return DepthExceeds(max), nil
		}
		var o operands
		if err := val.Decode(&o); err != nil {
			return Condition{}, err
		}
		if o.Max == nil {
			return Condition{}, nodeErr(val, "depth_exceeds requires max")
		}
		return DepthExceeds(*o.Max), nil
	}

	var o operands
	switch {
	case val.Kind == yaml.ScalarNode:
		switch op {
		case OpAttributeMissing, OpAttributeExists:
			o.Name = val.Value
		case OpHasChild, OpMissingChild, OpParentIs, OpParentNot:
			o.Element = val.Value
		case OpTextMatches:
			o.Pattern = val.Value
		case OpTextContains:
			o.Substring = val.Value
		default:
			return Condition{}, nodeErr(val, "%s expects a mapping", op)
		}
	case val.Kind == yaml.SequenceNode && (op == OpParentIn || op == OpParentNotIn):
		if err := val.Decode(&o.Elements); err != nil {
			return Condition{}, err
		}
	default:
		if err := val.Decode(&o); err != nil {
			return Condition{}, err
		}
	}

	c := Condition{Op: op, Name: o.Name, Value: o.Value, Values: o.Values,
		Pattern: o.Pattern, Element: o.Element, Elements: o.Elements}
	if op == OpTextContains {
		c.Value = o.Substring
		if c.Value == "" {
			c.Value = o.Value
		}
	}
	return c, requireOperands(c, val)
}

func requireOperands(c Condition, n *yaml.Node) error {
	switch c.Op {
	case OpAttributeMissing, OpAttributeExists, OpAttributeEquals, OpAttributeNotEquals,
		OpAttributeMatches, OpAttributeNotMatches, OpAttributeIn, OpAttributeNotIn:
		if c.Name == "" {
			return nodeErr(n, "%s requires name", c.Op)
		}
	case OpHasChild, OpMissingChild, OpParentIs, OpParentNot:
		if c.Element == "" {
			return nodeErr(n, "%s requires element", c.Op)
		}
	case OpParentIn, OpParentNotIn:
		if len(c.Elements) == 0 {
			return nodeErr(n, "%s requires elements", c.Op)
		}
	}
	switch c.Op {
	case OpAttributeMatches, OpAttributeNotMatches, OpTextMatches:
		if c.Pattern == "" {
			return nodeErr(n, "%s requires pattern", c.Op)
		}
	}
	return nil
}

// MarshalYAML emits the same form UnmarshalYAML reads.
func (c Condition) MarshalYAML() (any, error) {
	switch c.Op {
	case OpAlways, OpNever:
		return c.Op.String(), nil
	case OpAll, OpAny:
		return map[string]any{c.Op.String(): c.Children}, nil
	case OpNot:
		if len(c.Children) != 1 {
			return nil, fmt.Errorf("not requires exactly one condition")
		}
		return map[string]any{"not": c.Children[0]}, nil
	case OpChildCount:
		return map[string]any{"child_count": map[string]any{
			"element": c.Element, "op": c.Compare.String(), "value": c.Count}}, nil
	case OpDepthExceeds:
		return map[string]any{"depth_exceeds": map[string]any{"max": c.Count}}, nil
	}
	args := map[string]any{}
	if c.Name != "" {
		args["name"] = c.Name
	}
	switch c.Op {
	case OpAttributeEquals, OpAttributeNotEquals:
		args["value"] = c.Value
	case OpTextContains:
		args["substring"] = c.Value
	}
	if c.Values != nil {
		args["values"] = c.Values
	}
	if c.Pattern != "" {
		args["pattern"] = c.Pattern
	}
	if c.Element != "" {
		args["element"] = c.Element
	}
	if c.Elements != nil {
		args["elements"] = c.Elements
	}
	return map[string]any{c.Op.String(): args}, nil
}

func nodeErr(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", n.Line, fmt.Sprintf(format, args...))
}
