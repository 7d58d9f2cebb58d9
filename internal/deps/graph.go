// Package deps models what an installer depends on (runtimes, merge
// modules, chained packages, extensions, sequenced custom actions) as a
// directed graph, and finds cycles and a safe ordering in it.
//
// An edge A -> B means A depends on B. Every traversal visits nodes and
// edges in sorted order, so results are deterministic.
package deps

import (
	"fmt"
	"strings"

	"wixlint/internal/diag"
	"wixlint/internal/sortutil"
)

// Type classifies a dependency.
type Type int

const (
	Other Type = iota
	DotNetFramework
	DotNetCore
	VCRuntime
	DirectX
	WindowsSdk
	NativeDll
	ComComponent
	WixExtension
	MergeModule
	Package
	CustomAction
)

var typeNames = map[Type]string{
	Other:           "Other",
	DotNetFramework: ".NET Framework",
	DotNetCore:      ".NET",
	VCRuntime:       "Visual C++ Runtime",
	DirectX:         "DirectX",
	WindowsSdk:      "Windows SDK",
	NativeDll:       "Native DLL",
	ComComponent:    "COM Component",
	WixExtension:    "WiX Extension",
	MergeModule:     "Merge Module",
	Package:         "Package",
	CustomAction:    "Custom Action",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// MarshalText encodes the display name.
func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Dependency is one node's payload.
type Dependency struct {
	Name        string        `json:"name"`
	Version     string        `json:"version,omitempty"`
	Type        Type          `json:"type"`
	Required    bool          `json:"required"`
	Bundled     bool          `json:"bundled"`
	SourceFile  string        `json:"source_file,omitempty"`
	DownloadURL string        `json:"download_url,omitempty"`
	Location    diag.Location `json:"location"`
}

// Node is a dependency plus its edges in both directions.
type Node struct {
	Dependency Dependency
	DependsOn  map[string]struct{}
	RequiredBy map[string]struct{}
}

// DependsOnSorted lists outgoing edges in name order.
func (n *Node) DependsOnSorted() []string { return sortedSet(n.DependsOn) }

// RequiredBySorted lists incoming edges in name order.
func (n *Node) RequiredBySorted() []string { return sortedSet(n.RequiredBy) }

// CycleError reports the first cycle found by TopologicalSort.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	path := append(append([]string(nil), e.Cycle...), e.Cycle[0])
	return "Circular dependency detected: " + strings.Join(path, " -> ")
}

// Graph is a set of named nodes. Names are unique; adding an existing name
// replaces its payload and keeps its edges.
type Graph struct {
	nodes map[string]*Node
}

// New returns an empty graph.
func New() *Graph { return &Graph{nodes: make(map[string]*Node)} }

// AddDependency inserts or updates a node.
func (g *Graph) AddDependency(d Dependency) {
	if n, ok := g.nodes[d.Name]; ok {
		n.Dependency = d
		return
	}
	g.nodes[d.Name] = &Node{
		Dependency: d,
		DependsOn:  make(map[string]struct{}),
		RequiredBy: make(map[string]struct{}),
	}
}

// AddEdge records that from depends on to. Both nodes must exist; it
// reports whether the edge was added.
func (g *Graph) AddEdge(from, to string) bool {
	f, ok := g.nodes[from]
	if !ok {
		return false
	}
	t, ok := g.nodes[to]
	if !ok {
		return false
	}
	f.DependsOn[to] = struct{}{}
	t.RequiredBy[from] = struct{}{}
	return true
}

// Get returns the node called name.
func (g *Graph) Get(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Len is the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Names returns every node name, sorted.
func (g *Graph) Names() []string { return sortutil.Keys(g.nodes) }

// Nodes returns every node ordered by name.
func (g *Graph) Nodes() []*Node {
	names := g.Names()
	out := make([]*Node, len(names))
	for i, n := range names {
		out[i] = g.nodes[n]
	}
	return out
}

// RootDependencies are nodes nothing depends on.
func (g *Graph) RootDependencies() []*Node {
	var out []*Node
	for _, n := range g.Nodes() {
		if len(n.RequiredBy) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// LeafDependencies are nodes that depend on nothing.
func (g *Graph) LeafDependencies() []*Node {
	var out []*Node
	for _, n := range g.Nodes() {
		if len(n.DependsOn) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Merge copies other's nodes and edges into g. Payloads from other win for
// names present in both.
func (g *Graph) Merge(other *Graph) {
	for _, n := range other.Nodes() {
		g.AddDependency(n.Dependency)
	}
	for _, n := range other.Nodes() {
		for to := range n.DependsOn {
			g.AddEdge(n.Dependency.Name, to)
		}
	}
}

// DetectCycles runs a three-color depth-first search from every unvisited
// node in name order. When the walk reaches a node that is still on the
// current path, the cycle is the path suffix starting at that node.
func (g *Graph) DetectCycles() [][]string {
	var (
		cycles  [][]string
		visited = make(map[string]bool, len(g.nodes))
		onStack = make(map[string]bool)
		path    []string
	)
	var visit func(name string)
	visit = func(name string) {
		visited[name] = true
		onStack[name] = true
		path = append(path, name)
		for _, dep := range g.nodes[name].DependsOnSorted() {
			switch {
			case !visited[dep]:
				visit(dep)
			case onStack[dep]:
				for i, p := range path {
					if p == dep {
						cycles = append(cycles, append([]string(nil), path[i:]...))
						break
					}
				}
			}
		}
		path = path[:len(path)-1]
		onStack[name] = false
	}
	for _, name := range g.Names() {
		if !visited[name] {
			visit(name)
		}
	}
	return cycles
}

// TopologicalSort orders nodes so each appears before everything it depends
// on. A graph with a cycle yields a *CycleError naming the first cycle found.
func (g *Graph) TopologicalSort() ([]string, error) {
	if cycles := g.DetectCycles(); len(cycles) > 0 {
		return nil, &CycleError{Cycle: cycles[0]}
	}
	visited := make(map[string]bool, len(g.nodes))
	order := make([]string, 0, len(g.nodes))
	var visit func(name string)
	visit = func(name string) {
		visited[name] = true
		for _, dep := range g.nodes[name].DependsOnSorted() {
			if !visited[dep] {
				visit(dep)
			}
		}
		order = append(order, name)
	}
	for _, name := range g.Names() {
		if !visited[name] {
			visit(name)
		}
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

func sortedSet(s map[string]struct{}) []string { return sortutil.Keys(s) }
