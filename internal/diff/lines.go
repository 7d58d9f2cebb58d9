package diff

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	godiff "github.com/sourcegraph/go-diff/diff"

	"wixlint/internal/diag"
	"wixlint/internal/walkwalk"
)

// LineSet maps a file to the set of line numbers that are new in it.
type LineSet map[string]map[int]struct{}

// Contains reports whether line of file is new.
func (ls LineSet) Contains(file string, line int) bool {
	_, ok := ls[pathKey(file)][line]
	return ok
}

// Len counts the new lines across all files.
func (ls LineSet) Len() int {
	n := 0
	for _, s := range ls {
		n += len(s)
	}
	return n
}

// Lines runs `git diff -U0 <ref>` and returns the added lines of every WiX
// file.
func (d *Detector) Lines(ctx context.Context, ref string) (LineSet, error) {
	out, err := d.git(ctx, "diff", "-U0", "--relative", "--no-color", ref)
	if err != nil {
		return nil, err
	}
	ls, err := d.ParseLines([]byte(out))
	if err != nil {
		return nil, err
	}
	d.log().WithFields(logrus.Fields{"ref": ref, "files": len(ls), "lines": ls.Len()}).Debug("diff: new lines parsed")
	return ls, nil
}

// ParseLines extracts the added lines from a unified diff. Paths are
// resolved against the detector's workdir.
func (d *Detector) ParseLines(patch []byte) (LineSet, error) {
	ls := make(LineSet)
	if len(bytes.TrimSpace(patch)) == 0 {
		return ls, nil
	}
	files, err := godiff.NewMultiFileDiffReader(bytes.NewReader(patch)).ReadAllFiles()
	if err != nil {
		return nil, &Error{Kind: ErrGit, Msg: "parse diff: " + err.Error()}
	}
	for _, fd := range files {
		if fd.NewName == "/dev/null" {
			continue
		}
		name := strings.TrimPrefix(fd.NewName, "b/")
		if !walkwalk.HasExtension(name, d.exts()) {
			continue
		}
		key := pathKey(d.resolve(filepath.FromSlash(name)))
		set := ls[key]
		if set == nil {
			set = make(map[int]struct{})
			ls[key] = set
		}
		for _, h := range fd.Hunks {
			addedLines(h, set)
		}
	}
	return ls, nil
}

// addedLines walks a hunk body and records the new-file line number of every
// '+' line.
func addedLines(h *godiff.Hunk, set map[int]struct{}) {
	line := int(h.NewStartLine)
	for _, l := range bytes.SplitAfter(h.Body, []byte("\n")) {
		if len(l) == 0 {
			continue
		}
		switch l[0] {
		case '+':
			set[line] = struct{}{}
			line++
		case ' ':
			line++
		}
	}
}

// FilterToNewLines keeps only diagnostics that start on a new line and
// returns how many were dropped.
func FilterToNewLines(results []diag.Result, lines LineSet) int {
	dropped := 0
	for i := range results {
		ds := results[i].Diagnostics
		kept := ds[:0]
		for _, dg := range ds {
			if lines.Contains(dg.Location.File, dg.Location.Line) {
				kept = append(kept, dg)
			}
		}
		dropped += len(ds) - len(kept)
		results[i].Diagnostics = kept
	}
	return dropped
}
