// Package cache persists analysis results keyed by file content so repeated
// runs only evaluate files that changed.
//
// Layout under the cache directory:
//
//	index.json                    version, creation time, path -> Entry
//	results/<hash16>-<path8>.json one serialized diag.Result per file
//
// A stored result is served only when both the content hash and the tool
// version match. Any other state (different content, newer tool, unreadable
// blob) is a miss and the caller re-analyzes.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"wixlint/internal/diag"
	"wixlint/internal/fsutil"
	"wixlint/internal/metrics"
)

const (
	// Version is the on-disk format version. A mismatch discards the cache.
	Version = 1
	// MaxAge is how long Cleanup keeps an entry.
	MaxAge = 7 * 24 * time.Hour

	// DefaultDir is the cache directory name used inside a project.
	DefaultDir = ".wixanalyzer-cache"

	indexFileName  = "index.json"
	resultsDirName = "results"
)

// Op classifies a cache failure.
type Op string

const (
	OpIO        Op = "io"
	OpParse     Op = "parse"
	OpSerialize Op = "serialize"
)

// Error is a failure to read or write cache state.
type Error struct {
	Op   Op
	Path string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Entry records one analyzed file.
type Entry struct {
	ContentHash string `json:"content_hash"`
	AnalyzedAt  int64  `json:"analyzed_at"` // unix seconds
	ToolVersion string `json:"tool_version"`
	ResultFile  string `json:"result_file"`
	// Context is a digest of whatever else the result depended on (rule
	// selection, project symbols). Empty when unused.
	Context string `json:"context,omitempty"`
}

type indexFile struct {
	Version   int              `json:"version"`
	CreatedAt int64            `json:"created_at"`
	Entries   map[string]Entry `json:"entries"`
}

// Stats counts cache activity since Open.
type Stats struct {
	Hits       int   `json:"hits"`
	Misses     int   `json:"misses"`
	Analyzed   int   `json:"analyzed"`
	Skipped    int   `json:"skipped"`
	BytesSaved int64 `json:"bytes_saved"`
}

// HitRate is Hits / (Hits + Misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is the on-disk analysis cache. Methods are safe for concurrent use,
// although the project analyzer funnels every write through one goroutine.
type Cache struct {
	dir         string
	toolVersion string
	context     string
	log         logrus.FieldLogger
	now         func() time.Time

	mu    sync.Mutex
	index indexFile
	dirty bool
	stats Stats
}

// Open loads the cache in dir, creating it when missing. An index written
// by a different format version, or one that cannot be decoded, is
// discarded together with every stored result.
func Open(dir, toolVersion string, log logrus.FieldLogger) (*Cache, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	c := &Cache{dir: dir, toolVersion: toolVersion, log: log, now: time.Now}
	if err := os.MkdirAll(c.resultsDir(), 0o755); err != nil {
		return nil, &Error{Op: OpIO, Path: c.resultsDir(), Err: err}
	}
	c.index = c.freshIndex()

	path := filepath.Join(dir, indexFileName)
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return c, nil
	case err != nil:
		return nil, &Error{Op: OpIO, Path: path, Err: err}
	}

	var idx indexFile
	if err := json.Unmarshal(b, &idx); err != nil {
		log.WithFields(logrus.Fields{"path": path, "error": &Error{Op: OpParse, Path: path, Err: err}}).
			Warn("cache: unreadable index, starting empty")
		return c, c.resetResults()
	}
	if idx.Version != Version {
		log.WithFields(logrus.Fields{"path": path, "found": idx.Version, "want": Version}).
			Info("cache: format version changed, starting empty")
		return c, c.resetResults()
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]Entry)
	}
	c.index = idx
	return c, nil
}

func (c *Cache) freshIndex() indexFile {
	return indexFile{Version: Version, CreatedAt: c.now().Unix(), Entries: make(map[string]Entry)}
}

func (c *Cache) resultsDir() string { return filepath.Join(c.dir, resultsDirName) }

// resetResults drops every stored result and marks the empty index dirty so
// the next Save overwrites the stale one.
func (c *Cache) resetResults() error {
	c.dirty = true
	if err := os.RemoveAll(c.resultsDir()); err != nil {
		return &Error{Op: OpIO, Path: c.resultsDir(), Err: err}
	}
	if err := os.MkdirAll(c.resultsDir(), 0o755); err != nil {
		return &Error{Op: OpIO, Path: c.resultsDir(), Err: err}
	}
	return nil
}

// SetContext sets the context digest that Get and NeedsAnalysis require and
// Put records. Entries stored under another context are stale.
func (c *Cache) SetContext(key string) {
	c.mu.Lock()
	c.context = key
	c.mu.Unlock()
}

func (c *Cache) current(e Entry, hash string) bool {
	return e.ContentHash == hash && e.ToolVersion == c.toolVersion && e.Context == c.context
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// HashContent is the lowercase hex sha256 of source.
func HashContent(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// ResultFileFor names the stored result of path with content hash. Results
// depend on the path as well as the text (a duplicate is reported on its
// second definition), so identical files never share a result.
func ResultFileFor(path, hash string) string {
	return fmt.Sprintf("%s-%08x.json", hash[:16], uint32(xxh3.HashString(path)))
}

// Get returns the stored result for path when source and the tool version
// are unchanged.
func (c *Cache) Get(path, source string) (*diag.Result, bool) {
	hash := HashContent(source)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.index.Entries[path]
	if !ok {
		c.miss("miss")
		return nil, false
	}
	if !c.current(e, hash) {
		c.miss("stale")
		return nil, false
	}
	blob := filepath.Join(c.resultsDir(), e.ResultFile)
	b, err := os.ReadFile(blob)
	var res diag.Result
	if err == nil {
		err = json.Unmarshal(b, &res)
	}
	if err != nil {
		c.log.WithFields(logrus.Fields{"file": path, "blob": blob, "error": err}).Debug("cache: dropping unreadable result")
		delete(c.index.Entries, path)
		c.dirty = true
		c.miss("corrupt")
		return nil, false
	}

	if res.File != path {
		c.log.WithFields(logrus.Fields{"file": path, "blob": blob, "stored": res.File}).Debug("cache: dropping result of another file")
		delete(c.index.Entries, path)
		c.dirty = true
		c.miss("corrupt")
		return nil, false
	}
	res.FromCache = true
	c.stats.Hits++
	c.stats.Skipped++
	c.stats.BytesSaved += int64(len(source))
	metrics.CacheRequests.WithLabelValues("hit").Inc()
	return &res, true
}

func (c *Cache) miss(kind string) {
	c.stats.Misses++
	metrics.CacheRequests.WithLabelValues(kind).Inc()
}

// Put stores result for path under the hash of source.
func (c *Cache) Put(path, source string, result diag.Result) error {
	hash := HashContent(source)
	name := ResultFileFor(path, hash)

	b, err := json.Marshal(result)
	if err != nil {
		return &Error{Op: OpSerialize, Path: path, Err: err}
	}
	if err := fsutil.WriteAtomic(c.resultsDir(), name, b); err != nil {
		return &Error{Op: OpIO, Path: filepath.Join(c.resultsDir(), name), Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	prev, had := c.index.Entries[path]
	c.index.Entries[path] = Entry{
		ContentHash: hash,
		AnalyzedAt:  c.now().Unix(),
		ToolVersion: c.toolVersion,
		ResultFile:  name,
		Context:     c.context,
	}
	c.dirty = true
	c.stats.Analyzed++
	if had && prev.ResultFile != name {
		return c.removeUnshared([]string{prev.ResultFile})
	}
	return nil
}

// NeedsAnalysis reports whether Get would miss on hash or tool version. It
// does not touch the stored result and does not count as a lookup.
func (c *Cache) NeedsAnalysis(path, source string) bool {
	hash := HashContent(source)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.index.Entries[path]
	return !ok || !c.current(e, hash)
}

// Save writes the index when it changed since the last Save.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	b, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return &Error{Op: OpSerialize, Path: c.dir, Err: err}
	}
	if err := fsutil.WriteAtomic(c.dir, indexFileName, b); err != nil {
		return &Error{Op: OpIO, Path: filepath.Join(c.dir, indexFileName), Err: err}
	}
	c.dirty = false
	return nil
}

// Clear drops every entry and stored result.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = c.freshIndex()
	return c.resetResults()
}

// Cleanup removes entries analyzed more than MaxAge ago, and their results
// when no remaining entry shares them. It returns the number of entries
// removed.
func (c *Cache) Cleanup() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-MaxAge).Unix()
	removed := 0
	var orphans []string
	for path, e := range c.index.Entries {
		if e.AnalyzedAt < cutoff {
			delete(c.index.Entries, path)
			orphans = append(orphans, e.ResultFile)
			removed++
		}
	}
	if removed > 0 {
		c.dirty = true
	}
	return removed, c.removeUnshared(orphans)
}

// Invalidate forgets path so the next run re-analyzes it.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.index.Entries[path]
	if !ok {
		return
	}
	delete(c.index.Entries, path)
	c.dirty = true
	if err := c.removeUnshared([]string{e.ResultFile}); err != nil {
		c.log.WithFields(logrus.Fields{"file": path, "error": err}).Debug("cache: result not removed")
	}
}

func (c *Cache) removeUnshared(files []string) error {
	if len(files) == 0 {
		return nil
	}
	inUse := make(map[string]struct{}, len(c.index.Entries))
	for _, e := range c.index.Entries {
		inUse[e.ResultFile] = struct{}{}
	}
	var firstErr error
	for _, f := range files {
		if _, ok := inUse[f]; ok {
			continue
		}
		p := filepath.Join(c.resultsDir(), f)
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) && firstErr == nil {
			firstErr = &Error{Op: OpIO, Path: p, Err: err}
		}
	}
	return firstErr
}

// Stats returns a copy of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Len is the number of index entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index.Entries)
}
