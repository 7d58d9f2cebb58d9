package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wixlint/internal/diag"
)

const source = `<Wix><Component Id="C1" /></Wix>`

func sampleResult(file string) diag.Result {
	return diag.Result{
		File: file,
		Diagnostics: []diag.Diagnostic{{
			RuleID:   "VAL-ATTR-001",
			Severity: diag.SeverityBlocker,
			Category: diag.CategoryValidation,
			Message:  "Component 'C1' is missing required Guid attribute",
			Location: diag.Location{File: file, Line: 1, Col: 6, EndLine: 1, EndCol: 26},
		}},
	}
}

func TestRoundTripSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, "1.0.0", nil)
	require.NoError(t, err)
	require.NoError(t, c.Put("a.wxs", source, sampleResult("a.wxs")))
	require.NoError(t, c.Save())

	c2, err := Open(dir, "1.0.0", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, c2.Len())
	got, ok := c2.Get("a.wxs", source)
	require.True(t, ok)
	assert.True(t, got.FromCache)
	want := sampleResult("a.wxs")
	want.FromCache = true
	assert.Equal(t, want, *got)
	assert.Equal(t, 1, c2.Stats().Hits)
	assert.Equal(t, int64(len(source)), c2.Stats().BytesSaved)

	files, err := os.ReadDir(filepath.Join(dir, "results"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, ResultFileFor("a.wxs", HashContent(source)), files[0].Name())
}

func TestOneCharacterChangeMisses(t *testing.T) {
	c, err := Open(t.TempDir(), "1.0.0", nil)
	require.NoError(t, err)
	require.NoError(t, c.Put("a.wxs", source, sampleResult("a.wxs")))

	changed := source[:len(source)-1] + " "
	assert.True(t, c.NeedsAnalysis("a.wxs", changed))
	_, ok := c.Get("a.wxs", changed)
	assert.False(t, ok)
	assert.False(t, c.NeedsAnalysis("a.wxs", source))
	assert.Equal(t, 1, c.Stats().Misses)
	assert.InDelta(t, 0.0, c.Stats().HitRate(), 1e-9)
}

func TestToolVersionChangeMisses(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, "1.0.0", nil)
	require.NoError(t, err)
	require.NoError(t, c.Put("a.wxs", source, sampleResult("a.wxs")))
	require.NoError(t, c.Save())

	newer, err := Open(dir, "1.1.0", nil)
	require.NoError(t, err)
	assert.True(t, newer.NeedsAnalysis("a.wxs", source))
	_, ok := newer.Get("a.wxs", source)
	assert.False(t, ok)
}

func TestFormatVersionMismatchDiscardsEverything(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, "1.0.0", nil)
	require.NoError(t, err)
	require.NoError(t, c.Put("a.wxs", source, sampleResult("a.wxs")))
	require.NoError(t, c.Save())

	raw, err := os.ReadFile(filepath.Join(dir, indexFileName))
	require.NoError(t, err)
	var idx map[string]any
	require.NoError(t, json.Unmarshal(raw, &idx))
	idx["version"] = Version + 1
	raw, err = json.Marshal(idx)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, indexFileName), raw, 0o644))

	c2, err := Open(dir, "1.0.0", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, c2.Len())
	files, err := os.ReadDir(filepath.Join(dir, "results"))
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, c2.Save())
	raw, err = os.ReadFile(filepath.Join(dir, indexFileName))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"version": 1`)
}

func TestCorruptIndexStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, indexFileName), []byte("{not json"), 0o644))
	c, err := Open(dir, "1.0.0", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCorruptResultIsAMissAndDropsEntry(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, "1.0.0", nil)
	require.NoError(t, err)
	require.NoError(t, c.Put("a.wxs", source, sampleResult("a.wxs")))
	blob := filepath.Join(dir, "results", ResultFileFor("a.wxs", HashContent(source)))
	require.NoError(t, os.WriteFile(blob, []byte("garbage"), 0o644))

	_, ok := c.Get("a.wxs", source)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestIdenticalContentKeepsPerFileResults(t *testing.T) {
	c, err := Open(t.TempDir(), "1.0.0", nil)
	require.NoError(t, err)
	require.NoError(t, c.Put("a.wxs", source, diag.Result{File: "a.wxs"}))
	require.NoError(t, c.Put("copy/b.wxs", source, sampleResult("copy/b.wxs")))
	assert.NotEqual(t, ResultFileFor("a.wxs", HashContent(source)), ResultFileFor("copy/b.wxs", HashContent(source)))

	got, ok := c.Get("a.wxs", source)
	require.True(t, ok)
	assert.Equal(t, "a.wxs", got.File)
	assert.Empty(t, got.Diagnostics)

	got, ok = c.Get("copy/b.wxs", source)
	require.True(t, ok)
	require.Len(t, got.Diagnostics, 1)
	assert.Equal(t, "copy/b.wxs", got.Diagnostics[0].Location.File)

	c.Invalidate("copy/b.wxs")
	_, ok = c.Get("a.wxs", source)
	assert.True(t, ok)
	c.Invalidate("a.wxs")
	assert.Equal(t, 0, c.Len())
	files, err := os.ReadDir(filepath.Join(c.Dir(), "results"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCleanupRemovesOldEntries(t *testing.T) {
	c, err := Open(t.TempDir(), "1.0.0", nil)
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now.Add(-8 * 24 * time.Hour) }
	require.NoError(t, c.Put("old.wxs", source, sampleResult("old.wxs")))
	c.now = func() time.Time { return now }
	require.NoError(t, c.Put("new.wxs", "<Wix/>", diag.Result{File: "new.wxs"}))

	n, err := c.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.NeedsAnalysis("old.wxs", source))
	assert.False(t, c.NeedsAnalysis("new.wxs", "<Wix/>"))
}

func TestClearAndSaveIsNoopWhenClean(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir, "1.0.0", nil)
	require.NoError(t, err)
	require.NoError(t, c.Save())
	_, err = os.Stat(filepath.Join(dir, indexFileName))
	assert.True(t, errors.Is(err, os.ErrNotExist), "clean cache writes nothing")

	require.NoError(t, c.Put("a.wxs", source, sampleResult("a.wxs")))
	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())
	assert.True(t, c.NeedsAnalysis("a.wxs", source))
}

func TestErrorUnwraps(t *testing.T) {
	err := error(&Error{Op: OpIO, Path: "x", Err: os.ErrPermission})
	assert.ErrorIs(t, err, os.ErrPermission)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, OpIO, ce.Op)
}

func TestContextChangeMakesEntriesStale(t *testing.T) {
	c, err := Open(t.TempDir(), "1.0.0", nil)
	require.NoError(t, err)
	c.SetContext("symbols-a")
	require.NoError(t, c.Put("a.wxs", source, sampleResult("a.wxs")))
	_, ok := c.Get("a.wxs", source)
	require.True(t, ok)

	c.SetContext("symbols-b")
	_, ok = c.Get("a.wxs", source)
	assert.False(t, ok)
	assert.True(t, c.NeedsAnalysis("a.wxs", source))
}
