package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const missingRef = `<Wix>
  <Fragment>
    <ComponentRef Id="Missing" />
  </Fragment>
</Wix>
`

const sequenceCycle = `<Wix>
  <Fragment>
    <InstallExecuteSequence>
      <Custom Action="A" After="B" />
      <Custom Action="B" After="A" />
    </InstallExecuteSequence>
  </Fragment>
</Wix>
`

// project writes files plus an empty config so the temp dir is the root.
func project(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	files[".wixanalyzer.json"] = "{}\n"
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errb bytes.Buffer
	code := run(args, &out, &errb)
	return code, out.String(), errb.String()
}

func TestAnalyzeExitCodes(t *testing.T) {
	dir := project(t, map[string]string{"product.wxs": missingRef})

	code, out, stderr := runCLI(t, "analyze", dir)
	if code != exitFindings {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(out, "product.wxs:3:5: high [VAL-REF-001] No Component found with Id 'Missing'") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	if code, _, stderr = runCLI(t, "analyze", "--fail-on", "none", dir); code != exitOK {
		t.Fatalf("--fail-on none: exit %d, stderr: %s", code, stderr)
	}
	if code, _, _ = runCLI(t, "analyze", "--format", "sarif", dir); code != exitFatal {
		t.Fatalf("bad format: exit %d", code)
	}
}

func TestAnalyzeJSON(t *testing.T) {
	dir := project(t, map[string]string{"product.wxs": missingRef})
	_, out, _ := runCLI(t, "analyze", "--format", "json", "--no-cache", dir)
	var rep struct {
		Summary struct {
			Diagnostics int `json:"diagnostics"`
		} `json:"summary"`
		Results []struct {
			File string `json:"file"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, out)
	}
	if rep.Summary.Diagnostics == 0 || len(rep.Results) != 1 || rep.Results[0].File != "product.wxs" {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestBaselineSilencesKnownIssues(t *testing.T) {
	dir := project(t, map[string]string{"product.wxs": missingRef})
	code, out, stderr := runCLI(t, "baseline", "create", dir)
	if code != exitOK {
		t.Fatalf("baseline create: exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(out, "written to") {
		t.Fatalf("unexpected output: %s", out)
	}

	code, out, _ = runCLI(t, "analyze", dir)
	if code != exitOK {
		t.Fatalf("analyze after baseline: exit %d\n%s", code, out)
	}
	if !strings.Contains(out, "0 issue(s)") || !strings.Contains(out, "filtered") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
	if code, _, _ = runCLI(t, "analyze", "--no-baseline", dir); code != exitFindings {
		t.Fatalf("--no-baseline: exit %d", code)
	}
}

func TestDepsCheckFailsOnCycle(t *testing.T) {
	dir := project(t, map[string]string{"seq.wxs": sequenceCycle})
	code, out, _ := runCLI(t, "deps", "--check", dir)
	if code != exitFindings {
		t.Fatalf("exit %d\n%s", code, out)
	}
	if !strings.Contains(out, "Circular dependency detected: A -> B -> A") {
		t.Fatalf("cycle not reported:\n%s", out)
	}
}

func TestRulesListAndVersion(t *testing.T) {
	code, out, _ := runCLI(t, "rules", "list", "--no-cache")
	if code != exitOK || !strings.Contains(out, "SEC-001") || !strings.Contains(out, "VAL-REF-001") {
		t.Fatalf("rules list: exit %d\n%s", code, out)
	}
	code, out, _ = runCLI(t, "version")
	if code != exitOK || !strings.HasPrefix(out, "wixlint ") {
		t.Fatalf("version: exit %d %q", code, out)
	}
}

func TestChangeSourceRejectsConflicts(t *testing.T) {
	if _, _, err := changeSource(analyzeFlags{changedSinceBranch: "main", changedHead: 2}); err == nil {
		t.Fatalf("expected conflict error")
	}
	if _, ok, err := changeSource(analyzeFlags{}); err != nil || ok {
		t.Fatalf("no source expected, got ok=%v err=%v", ok, err)
	}
}
