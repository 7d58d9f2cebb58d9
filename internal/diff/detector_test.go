package diff

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wixlint/internal/diag"
)

func diagAt(rule, file string, line int) diag.Diagnostic {
	return diag.Diagnostic{RuleID: rule, Severity: diag.SeverityHigh, Location: diag.Location{File: file, Line: line, Col: 1}}
}

func TestFilterToChangedDropsOtherFiles(t *testing.T) {
	changes := &Result{Modified: []string{"changed.wxs"}}
	results := []diag.Result{{
		File: "changed.wxs",
		Diagnostics: []diag.Diagnostic{
			diagAt("VAL-001", "changed.wxs", 1),
			diagAt("VAL-002", "unchanged.wxs", 1),
		},
	}}

	assert.Equal(t, 1, FilterToChanged(results, changes))
	require.Len(t, results[0].Diagnostics, 1)
	assert.Equal(t, "VAL-001", results[0].Diagnostics[0].RuleID)
}

func TestResultAccessors(t *testing.T) {
	r := &Result{Added: []string{"a.wxs"}, Modified: []string{"b.wxs"}, Deleted: []string{"c.wxs"}}
	assert.Equal(t, []string{"a.wxs", "b.wxs"}, r.ChangedFiles())
	assert.Equal(t, 2, r.ChangedCount())
	assert.True(t, r.HasChanges())
	assert.True(t, r.IsChanged("./b.wxs"))
	assert.False(t, r.IsChanged("c.wxs"))
	assert.False(t, (&Result{}).HasChanges())
}

func TestParseNameStatus(t *testing.T) {
	d := &Detector{}
	res := d.parseNameStatus("A\tnew.wxs\nM\tsrc/old.wxi\nD\tgone.wxl\nR100\tfrom.wxs\tto.wxs\nT\ttype.wxs\nM\treadme.md\n\n")
	assert.Equal(t, []string{"new.wxs"}, res.Added)
	assert.Equal(t, []string{filepath.FromSlash("src/old.wxi"), "to.wxs", "type.wxs"}, res.Modified)
	assert.Equal(t, []string{"gone.wxl"}, res.Deleted)

	res = d.parseNameStatus("M\tMy Product/main setup.wxs\nR090\told name.wxs\tnew name.wxs\n")
	assert.Equal(t, []string{filepath.FromSlash("My Product/main setup.wxs"), "new name.wxs"}, res.Modified)
}

func TestDetectFileList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "here.wxs"), []byte("<Wix/>"), 0o644))
	d := &Detector{Workdir: dir}

	res, err := d.Detect(context.Background(), FileList(ParseFileList("here.wxs\n\n  missing.wxs \nnotes.txt\n")))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "here.wxs")}, res.Modified)
	assert.Equal(t, []string{filepath.Join(dir, "missing.wxs")}, res.Deleted)
}

func TestDetectModifiedSince(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.wxs")
	fresh := filepath.Join(dir, "fresh.wxs")
	hidden := filepath.Join(dir, ".hidden", "h.wxs")
	require.NoError(t, os.MkdirAll(filepath.Dir(hidden), 0o755))
	for _, p := range []string{old, fresh, hidden} {
		require.NoError(t, os.WriteFile(p, []byte("<Wix/>"), 0o644))
	}
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	res, err := (&Detector{Workdir: dir}).Detect(context.Background(), ModifiedSince(time.Now().Add(-time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, []string{fresh}, res.Modified)
}

func TestDetectAllIsEmpty(t *testing.T) {
	res, err := (&Detector{}).Detect(context.Background(), All())
	require.NoError(t, err)
	assert.False(t, res.HasChanges())
}

const patch = `diff --git a/product.wxs b/product.wxs
index 1111111..2222222 100644
--- a/product.wxs
+++ b/product.wxs
@@ -3,0 +4,2 @@
+    <Component Id="New" />
+    <File Source="x.dll" />
@@ -10 +12 @@
-    <Property Id="OLD" />
+    <Property Id="NEW" />
diff --git a/notes.md b/notes.md
index 1111111..2222222 100644
--- a/notes.md
+++ b/notes.md
@@ -1 +1 @@
-a
+b
`

func TestParseLinesAndFilter(t *testing.T) {
	ls, err := (&Detector{}).ParseLines([]byte(patch))
	require.NoError(t, err)
	assert.Equal(t, 3, ls.Len())
	assert.True(t, ls.Contains("product.wxs", 4))
	assert.True(t, ls.Contains("product.wxs", 5))
	assert.True(t, ls.Contains("product.wxs", 12))
	assert.False(t, ls.Contains("product.wxs", 6))

	results := []diag.Result{{File: "product.wxs", Diagnostics: []diag.Diagnostic{
		diagAt("A", "product.wxs", 4),
		diagAt("B", "product.wxs", 7),
		diagAt("C", "product.wxs", 12),
	}}}
	assert.Equal(t, 1, FilterToNewLines(results, ls))
	assert.Len(t, results[0].Diagnostics, 2)
}

func TestGitHeadAgainstRealRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@example.invalid",
			"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@example.invalid")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	git("init", "-q")
	write("a.wxs", "<Wix>\n</Wix>\n")
	git("add", ".")
	git("commit", "-q", "-m", "one")
	write("a.wxs", "<Wix>\n  <Property Id=\"P\" />\n</Wix>\n")
	write("b.wxs", "<Wix/>\n")
	git("add", ".")
	git("commit", "-q", "-m", "two")

	d := &Detector{Workdir: dir}
	res, err := d.Detect(context.Background(), GitHead(1))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.wxs")}, res.Added)
	assert.Equal(t, []string{filepath.Join(dir, "a.wxs")}, res.Modified)
	assert.Equal(t, "HEAD~1", res.BaseRef)

	ls, err := d.Lines(context.Background(), "HEAD~1")
	require.NoError(t, err)
	assert.True(t, ls.Contains(filepath.Join(dir, "a.wxs"), 2))

	_, err = d.Detect(context.Background(), GitBranch("no-such-branch"))
	var de *Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, ErrGit, de.Kind)
}
