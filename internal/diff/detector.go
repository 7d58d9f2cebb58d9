package diff

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"wixlint/internal/diag"
	"wixlint/internal/sortutil"
	"wixlint/internal/walkwalk"
)

// SourceKind selects how changed files are found.
type SourceKind int

const (
	SourceAll SourceKind = iota
	SourceGitBranch
	SourceGitHead
	SourceFileList
	SourceModifiedSince
)

// Source describes where the set of changed files comes from. Build one
// with GitBranch, GitHead, FileList, ModifiedSince or All.
type Source struct {
	Kind    SourceKind
	Branch  string
	Commits int
	Files   []string
	Since   time.Time
}

// GitBranch compares HEAD with its merge base against branch.
func GitBranch(branch string) Source { return Source{Kind: SourceGitBranch, Branch: branch} }

// GitHead compares the working tree with HEAD~n.
func GitHead(n int) Source { return Source{Kind: SourceGitHead, Commits: n} }

// FileList treats the given paths as changed.
func FileList(paths []string) Source { return Source{Kind: SourceFileList, Files: paths} }

// ModifiedSince selects files whose mtime is after t.
func ModifiedSince(t time.Time) Source { return Source{Kind: SourceModifiedSince, Since: t} }

// All disables diff filtering.
func All() Source { return Source{Kind: SourceAll} }

// ErrorKind distinguishes git failures from filesystem failures.
type ErrorKind string

const (
	ErrGit ErrorKind = "git"
	ErrIO  ErrorKind = "io"
)

// Error is returned by Detect and Lines.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Kind == ErrGit {
		return "Git error: " + e.Msg
	}
	return "IO error: " + e.Msg
}

// Result lists changed files. BaseRef is the commit compared against, when
// git was used.
type Result struct {
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Deleted  []string `json:"deleted"`
	BaseRef  string   `json:"base_ref,omitempty"`
}

// ChangedFiles returns added and modified files sorted by path. Deleted
// files cannot carry diagnostics and are left out.
func (r *Result) ChangedFiles() []string {
	out := make([]string, 0, len(r.Added)+len(r.Modified))
	out = append(out, r.Added...)
	return sortutil.StablePathSort(append(out, r.Modified...))
}

// IsChanged reports whether path is among the changed files.
func (r *Result) IsChanged(path string) bool {
	k := pathKey(path)
	for _, f := range r.ChangedFiles() {
		if pathKey(f) == k {
			return true
		}
	}
	return false
}

// ChangedCount is len(ChangedFiles()).
func (r *Result) ChangedCount() int { return len(r.Added) + len(r.Modified) }

// HasChanges reports whether anything was added, modified or deleted.
func (r *Result) HasChanges() bool {
	return len(r.Added)+len(r.Modified)+len(r.Deleted) > 0
}

// Detector finds changed WiX files.
type Detector struct {
	// Workdir is where git runs and where relative paths are resolved.
	// Empty means the current directory.
	Workdir string
	// Extensions are lowercase with a leading dot; nil means the WiX set.
	Extensions []string
	Logger     logrus.FieldLogger
}

// NewDetector returns a detector rooted at workdir.
func NewDetector(workdir string, log logrus.FieldLogger) *Detector {
	return &Detector{Workdir: workdir, Logger: log}
}

func (d *Detector) log() logrus.FieldLogger {
	if d.Logger != nil {
		return d.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (d *Detector) exts() []string {
	if d.Extensions == nil {
		return walkwalk.WixExtensions
	}
	return d.Extensions
}

func (d *Detector) dir() string {
	if d.Workdir == "" {
		return "."
	}
	return d.Workdir
}

// Detect resolves src into a set of changed files.
func (d *Detector) Detect(ctx context.Context, src Source) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch src.Kind {
	case SourceGitBranch:
		res, err = d.detectBranch(ctx, src.Branch)
	case SourceGitHead:
		res, err = d.detectHead(ctx, src.Commits)
	case SourceFileList:
		res = d.detectFileList(src.Files)
	case SourceModifiedSince:
		res, err = d.detectModifiedSince(src.Since)
	default:
		res = &Result{}
	}
	if err != nil {
		return nil, err
	}
	d.log().WithFields(logrus.Fields{
		"added":    len(res.Added),
		"modified": len(res.Modified),
		"deleted":  len(res.Deleted),
		"base":     res.BaseRef,
	}).Debug("diff: changes detected")
	return res, nil
}

func (d *Detector) detectBranch(ctx context.Context, branch string) (*Result, error) {
	out, err := d.git(ctx, "merge-base", "HEAD", branch)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSpace(out)
	return d.nameStatus(ctx, base)
}

func (d *Detector) detectHead(ctx context.Context, n int) (*Result, error) {
	if n < 1 {
		n = 1
	}
	return d.nameStatus(ctx, "HEAD~"+strconv.Itoa(n))
}

func (d *Detector) nameStatus(ctx context.Context, base string) (*Result, error) {
	out, err := d.git(ctx, "diff", "--name-status", "--relative", base)
	if err != nil {
		return nil, err
	}
	res := d.parseNameStatus(out)
	res.BaseRef = base
	return res, nil
}

// parseNameStatus reads `git diff --name-status` output, whose fields are
// tab separated so paths may contain spaces. A rename or copy counts as a
// modification of the new path; unknown statuses count as modifications.
func (d *Detector) parseNameStatus(out string) *Result {
	res := &Result{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(fields) < 2 || fields[0] == "" {
			continue
		}
		path := fields[1]
		if (fields[0][0] == 'R' || fields[0][0] == 'C') && len(fields) > 2 {
			path = fields[2]
		}
		if !walkwalk.HasExtension(path, d.exts()) {
			continue
		}
		path = d.resolve(filepath.FromSlash(path))
		switch fields[0][0] {
		case 'A':
			res.Added = append(res.Added, path)
		case 'D':
			res.Deleted = append(res.Deleted, path)
		default:
			res.Modified = append(res.Modified, path)
		}
	}
	return res
}

func (d *Detector) detectFileList(files []string) *Result {
	res := &Result{}
	for _, f := range files {
		if !walkwalk.HasExtension(f, d.exts()) {
			continue
		}
		f = d.resolve(f)
		if _, err := os.Stat(f); err == nil {
			res.Modified = append(res.Modified, f)
		} else {
			res.Deleted = append(res.Deleted, f)
		}
	}
	return res
}

func (d *Detector) detectModifiedSince(since time.Time) (*Result, error) {
	files, err := walkwalk.CollectFiles(walkwalk.Options{
		Root:       d.dir(),
		Extensions: d.exts(),
		SkipDirs:   []string{"target", "node_modules"},
		SkipHidden: true,
		NoHash:     true,
	})
	if err != nil {
		return nil, &Error{Kind: ErrIO, Msg: err.Error()}
	}
	res := &Result{}
	for _, f := range files {
		if f.ModTime.After(since) {
			res.Modified = append(res.Modified, d.resolve(filepath.FromSlash(f.RelPath)))
		}
	}
	return res, nil
}

func (d *Detector) resolve(p string) string {
	if filepath.IsAbs(p) || d.Workdir == "" || d.Workdir == "." {
		return p
	}
	return filepath.Join(d.Workdir, p)
}

func (d *Detector) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.dir()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", &Error{Kind: ErrGit, Msg: fmt.Sprintf("git %s: %s", args[0], msg)}
	}
	return string(out), nil
}

// ParseFileList reads one path per line, ignoring blank lines.
func ParseFileList(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// FilterToChanged drops diagnostics located outside the changed files and
// returns how many were dropped.
func FilterToChanged(results []diag.Result, changes *Result) int {
	keep := make(map[string]struct{}, changes.ChangedCount())
	for _, f := range changes.ChangedFiles() {
		keep[pathKey(f)] = struct{}{}
	}
	dropped := 0
	for i := range results {
		ds := results[i].Diagnostics
		kept := ds[:0]
		for _, dg := range ds {
			if _, ok := keep[pathKey(dg.Location.File)]; ok {
				kept = append(kept, dg)
			}
		}
		dropped += len(ds) - len(kept)
		results[i].Diagnostics = kept
	}
	return dropped
}

// pathKey makes relative and absolute spellings of a path comparable.
func pathKey(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
