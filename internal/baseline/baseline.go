// Package baseline records the diagnostics a project already has so later
// runs report only new ones.
//
// Entries are matched by diag.Fingerprint, which tolerates small line shifts
// and message tail changes.
package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"wixlint/internal/diag"
	"wixlint/internal/fsutil"
	"wixlint/internal/meta"
)

const (
	// Version is the newest file format this build reads.
	Version = 1
	// FileName is looked up by FindAndLoad.
	FileName = ".wixanalyzer-baseline.json"
)

// Entry is one accepted diagnostic.
type Entry struct {
	Fingerprint string `json:"fingerprint"`
	RuleID      string `json:"rule_id"`
	File        string `json:"file"`
	Line        int    `json:"line"`
	MessageHash string `json:"message_hash"`
}

// EntryFor derives the entry of d with its file made relative to base.
func EntryFor(d diag.Diagnostic, base string) Entry {
	return Entry{
		Fingerprint: diag.Fingerprint(d, base),
		RuleID:      d.RuleID,
		File:        diag.RelativeFile(d.Location.File, base),
		Line:        d.Location.Line,
		MessageHash: diag.MessageHash(d.Message),
	}
}

// Baseline is the on-disk document.
type Baseline struct {
	Version     int     `json:"version"`
	Created     string  `json:"created"`
	ToolVersion string  `json:"tool_version"`
	Description string  `json:"description,omitempty"`
	Issues      []Entry `json:"issues"`

	fingerprints map[string]struct{}
}

// ErrorKind classifies a baseline failure.
type ErrorKind string

const (
	ErrRead        ErrorKind = "read"
	ErrWrite       ErrorKind = "write"
	ErrParse       ErrorKind = "parse"
	ErrSerialize   ErrorKind = "serialize"
	ErrUnsupported ErrorKind = "unsupported-version"
)

// Error is returned by Load and Save.
type Error struct {
	Kind    ErrorKind
	Path    string
	Version int
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrUnsupported:
		return fmt.Sprintf("unsupported baseline version: %d (max supported: %d)", e.Version, Version)
	case ErrSerialize:
		return fmt.Sprintf("failed to serialize baseline: %v", e.Err)
	}
	return fmt.Sprintf("failed to %s baseline '%s': %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an empty baseline stamped with the current time and version.
func New() *Baseline {
	return &Baseline{
		Version:     Version,
		Created:     time.Now().UTC().Format(time.RFC3339),
		ToolVersion: meta.Version,
	}
}

// FromResults captures every diagnostic of results. Files are stored
// relative to base.
func FromResults(results []diag.Result, base string) *Baseline {
	b := New()
	for _, r := range results {
		for _, d := range r.Diagnostics {
			b.Issues = append(b.Issues, EntryFor(d, base))
		}
	}
	sort.SliceStable(b.Issues, func(i, j int) bool {
		x, y := b.Issues[i], b.Issues[j]
		if x.File != y.File {
			return x.File < y.File
		}
		if x.Line != y.Line {
			return x.Line < y.Line
		}
		return x.RuleID < y.RuleID
	})
	return b
}

// Load reads a baseline file. Files written by a newer format are rejected.
func Load(path string) (*Baseline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: ErrRead, Path: path, Err: err}
	}
	var b Baseline
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, &Error{Kind: ErrParse, Path: path, Err: err}
	}
	if b.Version > Version {
		return nil, &Error{Kind: ErrUnsupported, Path: path, Version: b.Version}
	}
	return &b, nil
}

// FindAndLoad looks for FileName in dir and each parent. It returns the
// loaded baseline and its path, or a nil baseline when none is found.
func FindAndLoad(dir string) (*Baseline, string, error) {
	cur, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", err
	}
	for {
		p := filepath.Join(cur, FileName)
		if _, err := os.Stat(p); err == nil {
			b, err := Load(p)
			return b, p, err
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, "", &Error{Kind: ErrRead, Path: p, Err: err}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, "", nil
		}
		cur = parent
	}
}

// Save writes the baseline atomically.
func (b *Baseline) Save(path string) error {
	raw, err := fsutil.MarshalJSON(b)
	if err != nil {
		return &Error{Kind: ErrSerialize, Path: path, Err: err}
	}
	if err := fsutil.WriteAtomic(filepath.Dir(path), filepath.Base(path), raw); err != nil {
		return &Error{Kind: ErrWrite, Path: path, Err: err}
	}
	return nil
}

// Len is the number of entries.
func (b *Baseline) Len() int { return len(b.Issues) }

func (b *Baseline) set() map[string]struct{} {
	if b.fingerprints == nil {
		b.fingerprints = make(map[string]struct{}, len(b.Issues))
		for _, e := range b.Issues {
			b.fingerprints[e.Fingerprint] = struct{}{}
		}
	}
	return b.fingerprints
}

// Contains reports whether d is already accepted.
func (b *Baseline) Contains(d diag.Diagnostic, base string) bool {
	_, ok := b.set()[diag.Fingerprint(d, base)]
	return ok
}

// Filter removes accepted diagnostics from results and returns how many were
// removed.
func Filter(results []diag.Result, b *Baseline, base string) int {
	if b == nil {
		return 0
	}
	set := b.set()
	dropped := 0
	for i := range results {
		ds := results[i].Diagnostics
		kept := ds[:0]
		for _, d := range ds {
			if _, ok := set[diag.Fingerprint(d, base)]; !ok {
				kept = append(kept, d)
			}
		}
		dropped += len(ds) - len(kept)
		results[i].Diagnostics = kept
	}
	return dropped
}

// Stats summarises entries per rule and per file.
type Stats struct {
	TotalIssues int            `json:"total_issues"`
	UniqueRules int            `json:"unique_rules"`
	UniqueFiles int            `json:"unique_files"`
	ByRule      map[string]int `json:"by_rule"`
	ByFile      map[string]int `json:"by_file"`
}

// Stats computes a summary.
func (b *Baseline) Stats() Stats {
	s := Stats{ByRule: make(map[string]int), ByFile: make(map[string]int)}
	for _, e := range b.Issues {
		s.ByRule[e.RuleID]++
		s.ByFile[e.File]++
	}
	s.TotalIssues = len(b.Issues)
	s.UniqueRules = len(s.ByRule)
	s.UniqueFiles = len(s.ByFile)
	return s
}
