// Package diff answers "what changed?" for an analysis run: which files
// differ from a git ref, a list or a timestamp (Detector), which lines are
// new (Lines), and what a proposed fix would change (Unified).
//
// Patches are rendered with github.com/pmezard/go-difflib/difflib as
// classic unified diffs (---/+++ headers, @@ hunks, lines prefixed with
// ' ', '-', '+').
package diff

import (
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"

	"wixlint/internal/textutil"
)

// Options controls patch generation.
type Options struct {
	// MaxBytes is a guardrail on input size (old+new). When exceeded, a
	// placeholder patch is returned and oversize=true. 0 means no limit.
	MaxBytes int

	// Context is the number of context lines per hunk. Defaults to 3.
	Context int
}

func (o Options) context() int {
	if o.Context <= 0 {
		return 3
	}
	return o.Context
}

// Unified produces a unified patch for a↦b. An empty body means the inputs
// are identical.
func Unified(aName, bName string, a, b []byte, opt Options) (body string, oversize bool) {
	if opt.MaxBytes > 0 && len(a)+len(b) > opt.MaxBytes {
		return omitted(aName, bName), true
	}
	u := difflib.UnifiedDiff{
		A:        textutil.SplitLinesKeepNL(string(a)),
		B:        textutil.SplitLinesKeepNL(string(b)),
		FromFile: aName,
		ToFile:   bName,
		Context:  opt.context(),
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return omitted(aName, bName), false
	}
	return s, false
}

// Added produces a patch that adds the entire content b.
func Added(bName string, b []byte, opt Options) (string, bool) {
	if opt.MaxBytes > 0 && len(b) > opt.MaxBytes {
		return omitted("/dev/null", bName), true
	}
	bName = strings.TrimPrefix(bName, "b/")
	u := difflib.UnifiedDiff{
		A:        []string{},
		B:        textutil.SplitLinesKeepNL(string(b)),
		FromFile: "/dev/null",
		ToFile:   bName,
		Context:  opt.context(),
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil || s == "" {
		return omitted("/dev/null", bName), false
	}
	return s, false
}

func omitted(aName, bName string) string {
	return fmt.Sprintf("--- %s\n+++ %s\n@@\n# diff omitted\n", aName, bName)
}
