// Package walkwalk provides a deterministic, filterable filesystem walker
// used to discover the WiX sources of a project.
package walkwalk

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// WixExtensions are the source, include and localization file types.
var WixExtensions = []string{".wxs", ".wxi", ".wxl"}

// DefaultSkipDirs are directory base names never descended into.
var DefaultSkipDirs = []string{".git", ".hg", ".svn", "node_modules", "target", "bin", "obj", ".wixanalyzer-cache"}

// FileInfo is a minimal, deterministic descriptor of a collected file.
type FileInfo struct {
	RelPath   string // project-relative path with forward slashes
	AbsPath   string // absolute filesystem path
	Size      int64  // size in bytes
	SHA256Hex string // lowercase hex sha256 of the file contents
	Ext       string // lowercase extension including dot (e.g., ".wxs")
	ModTime   time.Time
}

// Options configures CollectFiles.
type Options struct {
	Root       string
	Extensions []string // lowercase with dot; empty means every file
	// Exclude holds doublestar globs matched against the slash-separated
	// relative path ("**/generated/**", "legacy/*.wxs").
	Exclude        []string
	SkipDirs       []string // defaults to DefaultSkipDirs when nil
	SkipHidden     bool     // skip every directory whose name starts with "."
	UseGitignore   bool
	FollowSymlinks bool
	MaxFileBytes   int64 // 0 = no limit
	// NoHash skips the sha256 computation.
	NoHash bool
}

type walkState struct {
	opt      Options
	root     string
	exts     map[string]struct{}
	skipDirs map[string]struct{}
	ignore   *ignore.GitIgnore
	files    []FileInfo
}

// CollectFiles walks opt.Root and returns matching files sorted by RelPath.
func CollectFiles(opt Options) ([]FileInfo, error) {
	root, err := filepath.Abs(opt.Root)
	if err != nil {
		return nil, err
	}
	st := &walkState{
		opt:      opt,
		root:     root,
		exts:     toSet(opt.Extensions),
		skipDirs: toSet(opt.SkipDirs),
	}
	if opt.SkipDirs == nil {
		st.skipDirs = toSet(DefaultSkipDirs)
	}
	if opt.UseGitignore {
		// A missing or unreadable .gitignore simply disables ignore matching.
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
			st.ignore = gi
		}
	}
	if err := filepath.WalkDir(root, st.visit); err != nil {
		return nil, err
	}
	sort.Slice(st.files, func(i, j int) bool { return st.files[i].RelPath < st.files[j].RelPath })
	return st.files, nil
}

func (ws *walkState) visit(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return nil
	}
	rel, ok := ws.relative(path)
	if !ok {
		return nil
	}
	if rel != "." && ws.shouldSkip(rel, d) {
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}
	if d.IsDir() {
		if rel != "." && !ws.opt.FollowSymlinks && isSymlink(d) {
			return filepath.SkipDir
		}
		return nil
	}
	return ws.handleFile(path, rel, d)
}

func (ws *walkState) relative(path string) (string, bool) {
	rel, err := filepath.Rel(ws.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return "", false
	}
	return rel, true
}

func (ws *walkState) shouldSkip(rel string, d fs.DirEntry) bool {
	if d.IsDir() {
		if _, skip := ws.skipDirs[d.Name()]; skip {
			return true
		}
		if ws.opt.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			return true
		}
	}
	if ws.ignore != nil && ws.ignore.MatchesPath(rel) {
		return true
	}
	return MatchesAny(ws.opt.Exclude, rel)
}

func (ws *walkState) handleFile(path, rel string, d fs.DirEntry) error {
	if !ws.opt.FollowSymlinks && isSymlink(d) {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	if len(ws.exts) > 0 {
		if _, ok := ws.exts[ext]; !ok {
			return nil
		}
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	if ws.opt.MaxFileBytes > 0 && info.Size() > ws.opt.MaxFileBytes {
		return nil
	}
	fi := FileInfo{
		RelPath: rel,
		AbsPath: path,
		Size:    info.Size(),
		Ext:     ext,
		ModTime: info.ModTime(),
	}
	if !ws.opt.NoHash {
		sum, err := sha256File(path)
		if err != nil {
			return nil
		}
		fi.SHA256Hex = sum
	}
	ws.files = append(ws.files, fi)
	return nil
}

// MatchesAny reports whether the slash-separated rel matches any doublestar
// glob. A glob without a slash also matches against the base name, so
// "*.wxi" excludes include files at any depth. Malformed globs never match.
func MatchesAny(globs []string, rel string) bool {
	rel = filepath.ToSlash(rel)
	base := rel[strings.LastIndex(rel, "/")+1:]
	for _, g := range globs {
		if g == "" {
			continue
		}
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
		if !strings.Contains(g, "/") {
			if ok, err := doublestar.Match(g, base); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// HasExtension reports whether path has one of exts (case-insensitive).
func HasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// isSymlink reports whether the DirEntry is a symlink (file or directory).
func isSymlink(d fs.DirEntry) bool {
	return d.Type()&fs.ModeSymlink != 0
}

func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, v := range list {
		if v != "" {
			m[strings.ToLower(v)] = struct{}{}
		}
	}
	return m
}

// sha256File computes a hex-encoded sha256 for the file at path.
func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
