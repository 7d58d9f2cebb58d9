// Package watch re-runs analysis when WiX sources change. It watches a
// directory tree with fsnotify and hands debounced, de-duplicated batches of
// changed paths to a callback.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"wixlint/internal/logging"
	"wixlint/internal/walkwalk"
)

// DefaultDebounce is the quiet period that closes a batch.
const DefaultDebounce = 300 * time.Millisecond

// Op classifies a change.
type Op int

const (
	OpWrite Op = iota
	OpCreate
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	default:
		return "write"
	}
}

// Change is the last observed operation on one path within a batch.
type Change struct {
	Path string
	Op   Op
}

// Handler receives each batch, sorted by path. It runs on the watcher's
// goroutine; no new batch is delivered until it returns.
type Handler func(ctx context.Context, batch []Change)

// Options configures a Watcher.
type Options struct {
	Root       string
	Extensions []string // defaults to walkwalk.WixExtensions
	SkipDirs   []string // defaults to walkwalk.DefaultSkipDirs
	Debounce   time.Duration
	Logger     logrus.FieldLogger
}

// Watcher watches Root recursively. New directories are picked up as they
// appear.
type Watcher struct {
	opt  Options
	log  logrus.FieldLogger
	skip map[string]struct{}
	fs   *fsnotify.Watcher
}

// New starts watching opt.Root.
func New(opt Options) (*Watcher, error) {
	if opt.Extensions == nil {
		opt.Extensions = walkwalk.WixExtensions
	}
	if opt.SkipDirs == nil {
		opt.SkipDirs = walkwalk.DefaultSkipDirs
	}
	if opt.Debounce <= 0 {
		opt.Debounce = DefaultDebounce
	}
	root, err := filepath.Abs(opt.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	opt.Root = root
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		opt:  opt,
		log:  logging.OrDiscard(opt.Logger),
		skip: make(map[string]struct{}, len(opt.SkipDirs)),
		fs:   fw,
	}
	for _, d := range opt.SkipDirs {
		w.skip[d] = struct{}{}
	}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if _, skip := w.skip[d.Name()]; skip && path != root {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error { return w.fs.Close() }

// Run delivers batches to h until ctx is cancelled or the watcher fails. A
// batch closes once no relevant event arrived for the debounce period.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	b := newBatch()
	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.handle(ev, b) {
				timer = time.After(w.opt.Debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.WithFields(logrus.Fields{"error": err}).Warn("watch: watcher error")
		case <-timer:
			timer = nil
			if changes := b.drain(); len(changes) > 0 {
				w.log.WithFields(logrus.Fields{"changes": len(changes)}).Debug("watch: batch ready")
				h(ctx, changes)
			}
		}
	}
}

// handle records ev in b and reports whether it was relevant.
func (w *Watcher) handle(ev fsnotify.Event, b *batch) bool {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if _, skip := w.skip[filepath.Base(ev.Name)]; !skip {
				if err := w.addTree(ev.Name); err != nil {
					w.log.WithFields(logrus.Fields{"dir": ev.Name, "error": err}).Warn("watch: cannot watch new directory")
				}
			}
			return false
		}
	}
	if !w.Relevant(ev.Name) {
		return false
	}
	op, ok := classify(ev.Op)
	if !ok {
		return false
	}
	b.add(ev.Name, op)
	return true
}

// Relevant reports whether path is a watched source outside skipped
// directories.
func (w *Watcher) Relevant(path string) bool {
	if !walkwalk.HasExtension(path, w.opt.Extensions) {
		return false
	}
	rel, err := filepath.Rel(w.opt.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if _, skip := w.skip[part]; skip {
			return false
		}
	}
	return true
}

func classify(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpRemove, true
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpWrite, true
	}
	return 0, false
}

// batch collapses repeated events per path. A create followed by writes
// stays a create; anything followed by a remove is a remove.
type batch struct {
	ops map[string]Op
}

func newBatch() *batch { return &batch{ops: make(map[string]Op)} }

func (b *batch) add(path string, op Op) {
	if prev, ok := b.ops[path]; ok && prev == OpCreate && op == OpWrite {
		return
	}
	b.ops[path] = op
}

func (b *batch) drain() []Change {
	out := make([]Change, 0, len(b.ops))
	for p, op := range b.ops {
		out = append(out, Change{Path: p, Op: op})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	b.ops = make(map[string]Op)
	return out
}

// Paths returns the paths of changes that still exist.
func Paths(batch []Change) []string {
	var out []string
	for _, c := range batch {
		if c.Op != OpRemove {
			out = append(out, c.Path)
		}
	}
	return out
}
