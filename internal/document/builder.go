package document

// Builder assembles a Document without XML. Each node gets a synthetic range
// on its own line (line = creation order + 1) so diagnostics from built trees
// still sort deterministically.
type Builder struct {
	doc *Document
}

// NewBuilder starts an empty tree for path.
func NewBuilder(path string) *Builder {
	return &Builder{doc: &Document{Path: path}}
}

// Root creates the root element. It must be called exactly once, first.
func (b *Builder) Root(kind string, attrs ...string) NodeID {
	if len(b.doc.nodes) > 0 {
		panic("document: Builder.Root called twice")
	}
	return b.add(NoParent, kind, attrs)
}

// Add appends a child of parent. attrs are name/value pairs.
func (b *Builder) Add(parent NodeID, kind string, attrs ...string) NodeID {
	if !b.doc.valid(parent) {
		panic("document: Builder.Add with unknown parent")
	}
	id := b.add(parent, kind, attrs)
	b.doc.nodes[parent].children = append(b.doc.nodes[parent].children, id)
	return id
}

// SetText sets a node's inline text.
func (b *Builder) SetText(id NodeID, text string) {
	b.doc.nodes[id].text = text
}

// Build returns the finished Document. The Builder must not be used after.
func (b *Builder) Build() *Document {
	d := b.doc
	b.doc = nil
	return d
}

func (b *Builder) add(parent NodeID, kind string, attrs []string) NodeID {
	if len(attrs)%2 != 0 {
		panic("document: attrs must be name/value pairs")
	}
	id := NodeID(len(b.doc.nodes))
	n := node{kind: kind, parent: parent}
	for i := 0; i < len(attrs); i += 2 {
		n.attrs = append(n.attrs, Attr{Name: attrs[i], Value: attrs[i+1]})
	}
	line := int(id) + 1
	n.rng = Range{StartLine: line, StartCol: 1, EndLine: line, EndCol: 1}
	b.doc.nodes = append(b.doc.nodes, n)
	return id
}
