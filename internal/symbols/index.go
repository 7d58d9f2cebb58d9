package symbols

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"wixlint/internal/diag"
	"wixlint/internal/document"
	"wixlint/internal/walkwalk"
)

// IndexError wraps a per-file failure during directory indexing. It is
// logged and the file is skipped.
type IndexError struct {
	File string
	Err  error
}

func (e *IndexError) Error() string { return fmt.Sprintf("index %s: %v", e.File, e.Err) }
func (e *IndexError) Unwrap() error { return e.Err }

// Index owns the definition and reference maps.
//
// The Index is built sequentially (IndexSource, IndexDocument,
// IndexDirectory, AddDefinition) and then shared read-only through the
// Resolver interface. It has no internal locking: no writer may run while
// readers are active.
type Index struct {
	log logrus.FieldLogger

	defs  map[string]map[string]Definition // canonical type -> id -> definition
	refs  map[string][]Reference           // canonical type + "\x00" + id -> references
	dups  []Duplicate
	files map[string]struct{}
}

// New returns an empty index. A nil logger discards output.
func New(log logrus.FieldLogger) *Index {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Index{
		log:   log,
		defs:  make(map[string]map[string]Definition),
		refs:  make(map[string][]Reference),
		files: make(map[string]struct{}),
	}
}

func refKey(canonical, id string) string { return canonical + "\x00" + id }

// IndexSource parses text and merges its symbols under file. A parse failure
// returns a *document.ParseError and leaves the index exactly as it was.
func (ix *Index) IndexSource(text, file string) error {
	doc, err := document.Parse(text, file)
	if err != nil {
		return err
	}
	ix.IndexDocument(doc)
	return nil
}

// IndexDocument merges the symbols of an already parsed document. Symbols
// previously recorded for the same file are replaced.
func (ix *Index) IndexDocument(doc *document.Document) {
	defs, refs := Extract(doc)
	ix.removeFile(doc.Path)
	ix.files[doc.Path] = struct{}{}
	for _, d := range defs {
		ix.addDefinition(d)
	}
	for _, r := range refs {
		k := refKey(r.CanonicalType(), r.ID)
		ix.refs[k] = append(ix.refs[k], r)
	}
}

// IndexDirectory indexes every WiX source under root. Unreadable or
// malformed files are logged and skipped. It returns the number of files
// indexed successfully.
func (ix *Index) IndexDirectory(root string) int {
	files, err := walkwalk.CollectFiles(walkwalk.Options{
		Root:         root,
		Extensions:   walkwalk.WixExtensions,
		UseGitignore: true,
	})
	if err != nil {
		ix.log.WithFields(logrus.Fields{"root": root, "error": err}).Warn("index: walk failed")
		return 0
	}
	n := 0
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f.RelPath))
		data, err := os.ReadFile(path)
		if err != nil {
			ix.log.WithFields(logrus.Fields{"file": path, "error": &IndexError{File: path, Err: err}}).Warn("index: skipping unreadable file")
			continue
		}
		if err := ix.IndexSource(string(data), path); err != nil {
			ix.log.WithFields(logrus.Fields{"file": path, "error": err}).Warn("index: skipping malformed file")
			continue
		}
		n++
	}
	ix.log.WithFields(logrus.Fields{"root": root, "files": n, "definitions": ix.DefinitionCount()}).Debug("index: directory indexed")
	return n
}

// AddDefinition injects a symbol that has no source, such as a standard
// directory. It is recorded under the synthetic file "<builtin>".
func (ix *Index) AddDefinition(id, kind, detail string) {
	ix.addDefinition(Definition{
		ID:       id,
		Kind:     kind,
		Location: diag.Location{File: BuiltinFile},
		Detail:   detail,
	})
}

// AddStandardDirectories injects the well-known installer folders.
func (ix *Index) AddStandardDirectories() {
	for _, id := range StandardDirectories {
		if !ix.HasDefinition("Directory", id) {
			ix.AddDefinition(id, "StandardDirectory", "standard directory")
		}
	}
}

func (ix *Index) addDefinition(d Definition) {
	ct := d.CanonicalType()
	bucket, ok := ix.defs[ct]
	if !ok {
		bucket = make(map[string]Definition)
		ix.defs[ct] = bucket
	}
	if first, exists := bucket[d.ID]; exists {
		ix.dups = append(ix.dups, Duplicate{First: first, Second: d})
		return
	}
	bucket[d.ID] = d
}

// removeFile drops every symbol previously contributed by file. Duplicates
// whose second definition came from file go too; a surviving duplicate whose
// first definition came from file is promoted into the index.
func (ix *Index) removeFile(file string) {
	if _, ok := ix.files[file]; !ok {
		return
	}
	delete(ix.files, file)
	for ct, bucket := range ix.defs {
		for id, d := range bucket {
			if d.Location.File == file {
				delete(bucket, id)
			}
		}
		if len(bucket) == 0 {
			delete(ix.defs, ct)
		}
	}
	for k, list := range ix.refs {
		kept := list[:0]
		for _, r := range list {
			if r.Location.File != file {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(ix.refs, k)
		} else {
			ix.refs[k] = kept
		}
	}
	dups := ix.dups
	ix.dups = nil
	for _, dup := range dups {
		switch {
		case dup.Second.Location.File == file:
		case dup.First.Location.File == file:
			ix.addDefinition(dup.Second)
		default:
			ix.dups = append(ix.dups, dup)
		}
	}
}

// GetDefinition looks up a definition by any alias of its kind.
func (ix *Index) GetDefinition(kind, id string) (Definition, bool) {
	d, ok := ix.defs[Canonical(kind)][id]
	return d, ok
}

// HasDefinition reports whether a definition exists for (kind, id).
func (ix *Index) HasDefinition(kind, id string) bool {
	_, ok := ix.GetDefinition(kind, id)
	return ok
}

// DefinitionsOfType returns the definitions of a canonical type, sorted by id.
func (ix *Index) DefinitionsOfType(kind string) []Definition {
	bucket := ix.defs[Canonical(kind)]
	out := make([]Definition, 0, len(bucket))
	for _, d := range bucket {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindReferences returns every reference whose canonical type and id match
// def, across all indexed files, sorted by location.
func (ix *Index) FindReferences(def Definition) []Reference {
	list := ix.refs[refKey(def.CanonicalType(), def.ID)]
	out := append([]Reference(nil), list...)
	sortReferences(out)
	return out
}

// IsReferenced reports whether anything references (kind, id).
func (ix *Index) IsReferenced(kind, id string) bool {
	return len(ix.refs[refKey(Canonical(kind), id)]) > 0
}

// AllReferences returns every reference sorted by location.
func (ix *Index) AllReferences() []Reference {
	var out []Reference
	for _, list := range ix.refs {
		out = append(out, list...)
	}
	sortReferences(out)
	return out
}

// Duplicates returns the rejected duplicate definitions in discovery order.
func (ix *Index) Duplicates() []Duplicate {
	return append([]Duplicate(nil), ix.dups...)
}

// Files returns the indexed file names, sorted.
func (ix *Index) Files() []string {
	out := make([]string, 0, len(ix.files))
	for f := range ix.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// DefinitionCount counts stored definitions (duplicates excluded).
func (ix *Index) DefinitionCount() int {
	n := 0
	for _, b := range ix.defs {
		n += len(b)
	}
	return n
}

// ReferenceCount counts stored references.
func (ix *Index) ReferenceCount() int {
	n := 0
	for _, l := range ix.refs {
		n += len(l)
	}
	return n
}

// Digest summarises the defined keys, the referenced keys and the
// duplicates with their locations. Moving a definition within its file does
// not change the digest; adding, removing or duplicating one does.
func (ix *Index) Digest() string {
	var lines []string
	for ct, bucket := range ix.defs {
		for id := range bucket {
			lines = append(lines, "d\x00"+ct+"\x00"+id)
		}
	}
	for k, list := range ix.refs {
		lines = append(lines, "r\x00"+k+"\x00"+strconv.Itoa(len(list)))
	}
	for _, dup := range ix.dups {
		lines = append(lines, "u\x00"+dup.Second.ID+"\x00"+dup.First.Location.String()+"\x00"+dup.Second.Location.String())
	}
	sort.Strings(lines)
	return strconv.FormatUint(xxh3.HashString(strings.Join(lines, "\n")), 16)
}

func sortReferences(rs []Reference) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i].Location, rs[j].Location
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})
}

var _ Resolver = (*Index)(nil)
