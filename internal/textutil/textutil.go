// Package textutil holds small text helpers shared by the parser, the
// diagnostic fingerprinting and the diff previews.
package textutil

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// LineIndex maps byte offsets of a source text to 1-based line/column pairs.
// Columns count runes, not bytes.
type LineIndex struct {
	src    string
	starts []int // byte offset of the first byte of each line
}

// NewLineIndex scans src once and records every line start.
func NewLineIndex(src string) *LineIndex {
	starts := make([]int, 1, 64)
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{src: src, starts: starts}
}

// Position converts a byte offset into a 1-based (line, column).
// Offsets past the end clamp to the last position.
func (li *LineIndex) Position(offset int) (line, col int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(li.src) {
		offset = len(li.src)
	}
	// index of the last line start <= offset
	i := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, utf8.RuneCountInString(li.src[li.starts[i]:offset]) + 1
}

// Lines reports the number of lines in the indexed text.
func (li *LineIndex) Lines() int { return len(li.starts) }

// NormalizeLF converts CRLF and lone CR to LF.
func NormalizeLF(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// FirstRunes returns at most n runes from the start of s.
func FirstRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// SplitLinesKeepNL splits into lines and keeps newline characters,
// which produces better unified hunks.
func SplitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.SplitAfter(s, "\n")
}
