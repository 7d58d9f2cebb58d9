// Package document provides the read-only tree view every analysis stage
// works against.
//
// Nodes live in an arena owned by the Document and are addressed by NodeID.
// Each node stores the index of its parent instead of a back-pointer, so
// ancestor walks are index chases and the tree cannot form reference cycles.
//
// The tree is produced either by Parse (encoding/xml) or by a Builder.
package document

// NodeID addresses a node inside its Document's arena.
type NodeID int

// NoParent is the parent of the root node.
const NoParent NodeID = -1

// Attr is one attribute in source order.
type Attr struct {
	Name  string
	Value string
}

// Range is a 1-based source span. End points just past the element.
type Range struct {
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// span holds byte offsets into Document.Source. All zero for built trees.
type span struct {
	start       int // '<' of the start tag
	tagEnd      int // just past the start tag's '>'
	innerEnd    int // '<' of the end tag (== tagEnd for self-closing)
	end         int // just past the element
	selfClosing bool
}

type node struct {
	kind     string
	attrs    []Attr
	children []NodeID
	parent   NodeID
	rng      Range
	text     string
	span     span
}

// Document is an immutable parsed tree plus the text it came from.
type Document struct {
	Path   string
	Source string
	nodes  []node
}

// Len reports the number of nodes.
func (d *Document) Len() int { return len(d.nodes) }

// Root returns the root element. An empty document has no root.
func (d *Document) Root() (NodeID, bool) {
	if len(d.nodes) == 0 {
		return NoParent, false
	}
	return 0, true
}

func (d *Document) valid(id NodeID) bool { return id >= 0 && int(id) < len(d.nodes) }

// Kind is the element's local name, e.g. "Component".
func (d *Document) Kind(id NodeID) string {
	if !d.valid(id) {
		return ""
	}
	return d.nodes[id].kind
}

// Attr looks up an attribute by exact name.
func (d *Document) Attr(id NodeID, name string) (string, bool) {
	if !d.valid(id) {
		return "", false
	}
	for _, a := range d.nodes[id].attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Attrs returns the attributes in source order. The slice must not be modified.
func (d *Document) Attrs(id NodeID) []Attr {
	if !d.valid(id) {
		return nil
	}
	return d.nodes[id].attrs
}

// Children returns the direct children in document order. The slice must not
// be modified.
func (d *Document) Children(id NodeID) []NodeID {
	if !d.valid(id) {
		return nil
	}
	return d.nodes[id].children
}

// Parent returns the enclosing element, or false for the root.
func (d *Document) Parent(id NodeID) (NodeID, bool) {
	if !d.valid(id) {
		return NoParent, false
	}
	p := d.nodes[id].parent
	return p, p != NoParent
}

// Range returns the node's source span.
func (d *Document) Range(id NodeID) Range {
	if !d.valid(id) {
		return Range{}
	}
	return d.nodes[id].rng
}

// Text is the trimmed character data directly inside the element.
func (d *Document) Text(id NodeID) string {
	if !d.valid(id) {
		return ""
	}
	return d.nodes[id].text
}

// Depth is the length of the ancestor chain; the root has depth 0.
func (d *Document) Depth(id NodeID) int {
	n := 0
	for p, ok := d.Parent(id); ok; p, ok = d.Parent(p) {
		n++
	}
	return n
}

// Ancestors returns the parent chain from the direct parent up to the root.
func (d *Document) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	for p, ok := d.Parent(id); ok; p, ok = d.Parent(p) {
		out = append(out, p)
	}
	return out
}

// Walk visits every node in document order (pre-order). Returning false from
// fn skips the node's subtree.
func (d *Document) Walk(fn func(id NodeID) bool) {
	root, ok := d.Root()
	if !ok {
		return
	}
	stack := []NodeID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(id) {
			continue
		}
		ch := d.nodes[id].children
		for i := len(ch) - 1; i >= 0; i-- {
			stack = append(stack, ch[i])
		}
	}
}

// Descendants returns every node below id in document order.
func (d *Document) Descendants(id NodeID) []NodeID {
	var out []NodeID
	stack := append([]NodeID(nil), d.Children(id)...)
	for i, j := 0, len(stack)-1; i < j; i, j = i+1, j-1 {
		stack[i], stack[j] = stack[j], stack[i]
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n)
		ch := d.nodes[n].children
		for i := len(ch) - 1; i >= 0; i-- {
			stack = append(stack, ch[i])
		}
	}
	return out
}

// Find returns all nodes of the given kind in document order.
func (d *Document) Find(kind string) []NodeID {
	var out []NodeID
	d.Walk(func(id NodeID) bool {
		if d.nodes[id].kind == kind {
			out = append(out, id)
		}
		return true
	})
	return out
}
