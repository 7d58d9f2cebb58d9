package diag

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"wixlint/internal/textutil"
)

// lineRegion groups lines so that small shifts keep the same fingerprint.
const lineRegion = 5

// RelativeFile returns file relative to base with forward slashes. When base
// is empty or file is outside base, the slash form of file is returned.
func RelativeFile(file, base string) string {
	if base != "" {
		if rel, err := filepath.Rel(base, file); err == nil && !strings.HasPrefix(rel, "..") {
			file = rel
		}
	}
	return strings.ReplaceAll(filepath.ToSlash(file), `\`, "/")
}

// Fingerprint identifies a diagnostic across runs: rule id, relative file,
// line region and the first 50 runes of the message.
func Fingerprint(d Diagnostic, base string) string {
	var b strings.Builder
	b.WriteString(d.RuleID)
	b.WriteByte('|')
	b.WriteString(RelativeFile(d.Location.File, base))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(d.Location.Line / lineRegion))
	b.WriteByte('|')
	b.WriteString(textutil.FirstRunes(d.Message, 50))
	h := xxh3.HashString128(b.String())
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

// MessageHash is a short digest of the full message text.
func MessageHash(msg string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(msg))
}
