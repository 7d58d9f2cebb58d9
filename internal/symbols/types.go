// Package symbols builds the project-wide index of WiX definitions and the
// references that point at them.
//
// Every concrete element spelling maps to one canonical type (see Canonical),
// so a ComponentGroupRef resolves against a Component definition and a
// DirectoryRef against a StandardDirectory.
package symbols

import "wixlint/internal/diag"

// BuiltinFile is the synthetic file name of manually injected definitions.
const BuiltinFile = "<builtin>"

// Definition introduces a named entity. Kind is the concrete element name
// ("ComponentGroup", "StandardDirectory", ...).
type Definition struct {
	ID       string        `json:"id"`
	Kind     string        `json:"kind"`
	Location diag.Location `json:"location"`
	Detail   string        `json:"detail,omitempty"`
}

// CanonicalType is the bucket the definition is stored under.
func (d Definition) CanonicalType() string { return Canonical(d.Kind) }

// Builtin reports whether the definition was injected rather than parsed.
func (d Definition) Builtin() bool { return d.Location.File == BuiltinFile }

// Reference points at a definition by id. Kind is the concrete element name
// ("ComponentRef", "FeatureGroupRef", ...).
type Reference struct {
	ID       string        `json:"id"`
	Kind     string        `json:"kind"`
	Location diag.Location `json:"location"`
}

// CanonicalType is the bucket the reference resolves in.
func (r Reference) CanonicalType() string { return Canonical(r.Kind) }

// Duplicate records a definition whose (canonical type, id) was already
// taken. The first definition stays in the index.
type Duplicate struct {
	First  Definition `json:"first"`
	Second Definition `json:"second"`
}

// Resolver is the read-only view used while rules are evaluated. Once the
// indexing phase ends the Index is only accessed through this interface and
// may be shared by any number of goroutines.
type Resolver interface {
	GetDefinition(kind, id string) (Definition, bool)
	HasDefinition(kind, id string) bool
	DefinitionsOfType(kind string) []Definition
	FindReferences(def Definition) []Reference
	IsReferenced(kind, id string) bool
	Duplicates() []Duplicate
}
