package walkwalk

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func relPaths(fs []FileInfo) []string {
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.RelPath)
	}
	return out
}

func TestCollectFilesFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/product.wxs", "<Wix/>")
	writeFile(t, root, "src/strings.WXL", "<WixLocalization/>")
	writeFile(t, root, "include/common.wxi", "<Include/>")
	writeFile(t, root, "README.md", "# readme")
	writeFile(t, root, "node_modules/pkg/x.wxs", "<Wix/>")
	writeFile(t, root, "generated/out.wxs", "<Wix/>")
	writeFile(t, root, "ignored/skip.wxs", "<Wix/>")
	writeFile(t, root, ".gitignore", "ignored/\n")

	files, err := CollectFiles(Options{
		Root:         root,
		Extensions:   WixExtensions,
		Exclude:      []string{"generated/**"},
		UseGitignore: true,
	})
	if err != nil {
		t.Fatalf("CollectFiles: %v", err)
	}
	got := relPaths(files)
	want := []string{"include/common.wxi", "src/product.wxs", "src/strings.WXL"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	for _, f := range files {
		if len(f.SHA256Hex) != 64 {
			t.Fatalf("%s: missing hash", f.RelPath)
		}
	}
	if files[2].Ext != ".wxl" {
		t.Fatalf("ext should be lowercased, got %q", files[2].Ext)
	}
}

func TestMatchesAny(t *testing.T) {
	cases := []struct {
		globs []string
		rel   string
		want  bool
	}{
		{[]string{"*.wxi"}, "deep/dir/common.wxi", true},
		{[]string{"legacy/*.wxs"}, "legacy/a.wxs", true},
		{[]string{"legacy/*.wxs"}, "legacy/sub/a.wxs", false},
		{[]string{"**/gen/**"}, "a/gen/b/c.wxs", true},
		{[]string{"[bad"}, "x.wxs", false},
		{nil, "x.wxs", false},
	}
	for _, c := range cases {
		if got := MatchesAny(c.globs, c.rel); got != c.want {
			t.Fatalf("MatchesAny(%v, %q) = %v, want %v", c.globs, c.rel, got, c.want)
		}
	}
}
