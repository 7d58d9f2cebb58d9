package analysis

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wixlint/internal/cache"
	"wixlint/internal/condition"
	"wixlint/internal/config"
	"wixlint/internal/diag"
	"wixlint/internal/rules"
)

const productSource = `<Wix>
  <Package Name="App" Version="1.0.0">
    <Feature Id="Main">
      <ComponentGroupRef Id="CoreFiles" />
      <ComponentRef Id="Missing" />
    </Feature>
  </Package>
</Wix>`

const filesSource = `<Wix>
  <Fragment>
    <ComponentGroup Id="CoreFiles">
      <Component Id="MainExe" />
    </ComponentGroup>
    <Component Id="Stray" />
  </Fragment>
</Wix>`

const dupSource = `<Wix>
  <Fragment>
    <Property Id="P1" Value="a" />
  </Fragment>
  <Fragment>
    <Property Id="P1" Value="b" />
  </Fragment>
</Wix>`

const cycleSource = `<Wix>
  <Fragment>
    <InstallExecuteSequence>
      <Custom Action="A" After="B" />
      <Custom Action="B" After="A" />
    </InstallExecuteSequence>
  </Fragment>
</Wix>`

func componentRule() []rules.Rule {
	return []rules.Rule{{
		ID:        "T-001",
		Severity:  diag.SeverityLow,
		Category:  diag.CategoryBestPractice,
		Element:   "Component",
		Condition: condition.Always(),
		Message:   "component {{id}}",
	}}
}

func writeProject(t *testing.T, files map[string]string) (string, []string) {
	t.Helper()
	root := t.TempDir()
	var paths []string
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		paths = append(paths, p)
	}
	return root, paths
}

func byFile(results []diag.Result) map[string][]diag.Diagnostic {
	out := make(map[string][]diag.Diagnostic, len(results))
	for _, r := range results {
		out[filepath.Base(r.File)] = r.Diagnostics
	}
	return out
}

func ruleIDs(ds []diag.Diagnostic) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.RuleID)
	}
	return out
}

func TestRunResolvesReferencesAcrossFiles(t *testing.T) {
	_, paths := writeProject(t, map[string]string{
		"product.wxs": productSource,
		"files.wxs":   filesSource,
	})
	p := &Project{Rules: componentRule(), Workers: 2}
	results, err := p.Run(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "files.wxs", filepath.Base(results[0].File), "results are ordered by path")

	got := byFile(results)
	product := got["product.wxs"]
	require.Len(t, product, 1, "CoreFiles resolves in files.wxs")
	assert.Equal(t, CheckReference, product[0].RuleID)
	assert.Equal(t, "No Component found with Id 'Missing'", product[0].Message)
	assert.Equal(t, 5, product[0].Location.Line)

	files := got["files.wxs"]
	assert.ElementsMatch(t, []string{"T-001", "T-001", CheckOrphan}, ruleIDs(files))
	for _, d := range files {
		if d.RuleID == CheckOrphan {
			assert.Equal(t, "Component 'Stray' is not included in any Feature", d.Message)
			assert.Equal(t, 6, d.Location.Line)
		}
	}

	st := p.Stats()
	assert.Equal(t, 2, st.Files)
	assert.Equal(t, 2, st.Evaluated)
	assert.Equal(t, 4, st.Diagnostics)
	assert.Equal(t, 2, st.Rules.ByRule["T-001"])
	require.NotNil(t, p.Index)
	assert.True(t, p.Index.HasDefinition("Directory", "ProgramFilesFolder"))
}

func TestRunReportsDuplicatesCyclesAndParseFailures(t *testing.T) {
	_, paths := writeProject(t, map[string]string{
		"dup.wxs":    dupSource,
		"cycle.wxs":  cycleSource,
		"broken.wxs": "<Wix>\n  <Oops>\n</Wix>",
	})
	p := &Project{Rules: []rules.Rule{}}
	results, err := p.Run(context.Background(), paths)
	require.NoError(t, err)
	got := byFile(results)

	dup := got["dup.wxs"]
	require.Len(t, dup, 1)
	assert.Equal(t, CheckDuplicate, dup[0].RuleID)
	assert.Equal(t, 6, dup[0].Location.Line)
	require.Len(t, dup[0].Related, 1)
	assert.Equal(t, 3, dup[0].Related[0].Location.Line)

	cyc := got["cycle.wxs"]
	require.Len(t, cyc, 1)
	assert.Equal(t, CheckDependencies, cyc[0].RuleID)
	assert.True(t, strings.HasPrefix(cyc[0].Message, "Circular dependency detected: "), cyc[0].Message)

	broken := got["broken.wxs"]
	require.Len(t, broken, 1)
	assert.Equal(t, CheckParse, broken[0].RuleID)
	assert.Equal(t, diag.SeverityBlocker, broken[0].Severity)
	assert.True(t, strings.HasPrefix(broken[0].Message, "Malformed XML: "))
	assert.Equal(t, 1, p.Stats().ParseFailures)
}

func TestRunReportsSelfDependency(t *testing.T) {
	_, paths := writeProject(t, map[string]string{"self.wxs": `<Wix>
  <Fragment>
    <InstallExecuteSequence>
      <Custom Action="A" After="A" />
    </InstallExecuteSequence>
  </Fragment>
</Wix>`})
	results, err := (&Project{Rules: []rules.Rule{}}).Run(context.Background(), paths)
	require.NoError(t, err)
	got := byFile(results)["self.wxs"]
	require.Len(t, got, 1)
	assert.Equal(t, CheckDependencies, got[0].RuleID)
	assert.Equal(t, "Circular dependency detected: A -> A", got[0].Message)
	assert.Equal(t, 4, got[0].Location.Line)
}

func TestRunHonoursInlineSuppression(t *testing.T) {
	src := strings.Replace(filesSource,
		`    <Component Id="Stray" />`,
		"    <!-- wix-analyzer-disable-next-line DEAD-003 -->\n    <Component Id=\"Stray\" />", 1)
	_, paths := writeProject(t, map[string]string{
		"product.wxs": productSource,
		"files.wxs":   src,
	})
	results, err := (&Project{Rules: componentRule()}).Run(context.Background(), paths)
	require.NoError(t, err)
	files := byFile(results)["files.wxs"]
	assert.Equal(t, []string{"T-001", "T-001"}, ruleIDs(files))
	for _, r := range results {
		if filepath.Base(r.File) == "files.wxs" {
			assert.Equal(t, 1, r.Suppressed)
		}
	}
}

func TestMaxDiagnosticsCountsOnlyUnsuppressed(t *testing.T) {
	_, paths := writeProject(t, map[string]string{"group.wxs": `<Wix>
  <Fragment>
    <ComponentGroup Id="G">
      <!-- wix-analyzer-disable-next-line T-001 -->
      <Component Id="A" />
      <Component Id="B" />
    </ComponentGroup>
  </Fragment>
</Wix>`})
	cfg := config.Default()
	cfg.MaxDiagnostics = 1
	cfg.Rules.Disabled = []string{"DEAD-*"}
	results, err := (&Project{Config: cfg, Rules: componentRule()}).Run(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Diagnostics, 1)
	assert.Equal(t, "component B", results[0].Diagnostics[0].Message)
	assert.Equal(t, 1, results[0].Suppressed)
}

func TestRunIsDeterministic(t *testing.T) {
	_, paths := writeProject(t, map[string]string{
		"product.wxs": productSource,
		"files.wxs":   filesSource,
		"dup.wxs":     dupSource,
		"cycle.wxs":   cycleSource,
	})
	first, err := (&Project{Rules: componentRule(), Workers: 4}).Run(context.Background(), paths)
	require.NoError(t, err)
	second, err := (&Project{Rules: componentRule(), Workers: 1}).Run(context.Background(), append(paths, paths[0]))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunServesUnchangedFilesFromCache(t *testing.T) {
	root, paths := writeProject(t, map[string]string{
		"product.wxs": productSource,
		"files.wxs":   filesSource,
	})
	open := func() *cache.Cache {
		c, err := cache.Open(filepath.Join(root, ".cache"), "test", nil)
		require.NoError(t, err)
		return c
	}

	p := &Project{Rules: componentRule(), Cache: open()}
	first, err := p.Run(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stats().FromCache)

	p = &Project{Rules: componentRule(), Cache: open()}
	second, err := p.Run(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stats().FromCache)
	assert.Equal(t, 0, p.Stats().Evaluated)
	for i := range second {
		assert.True(t, second[i].FromCache)
		second[i].FromCache = false
	}
	assert.Equal(t, first, second)

	// A new definition elsewhere changes what product.wxs resolves to.
	extra := filepath.Join(root, "extra.wxs")
	require.NoError(t, os.WriteFile(extra, []byte(`<Wix><Fragment><Component Id="Missing" /></Fragment></Wix>`), 0o644))
	p = &Project{Rules: componentRule(), Cache: open()}
	third, err := p.Run(context.Background(), append(paths, extra))
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stats().FromCache)
	assert.Empty(t, byFile(third)["product.wxs"])
}

func TestRunCachesIdenticalFilesSeparately(t *testing.T) {
	const twin = `<Wix><Fragment><Property Id="P1" Value="1" /></Fragment></Wix>`
	root, _ := writeProject(t, map[string]string{"a.wxs": twin, "b.wxs": twin})
	paths := []string{filepath.Join(root, "b.wxs"), filepath.Join(root, "a.wxs")}
	open := func() *cache.Cache {
		c, err := cache.Open(filepath.Join(root, ".cache"), "test", nil)
		require.NoError(t, err)
		return c
	}

	p := &Project{Rules: []rules.Rule{}, Cache: open()}
	cold, err := p.Run(context.Background(), paths)
	require.NoError(t, err)
	got := byFile(cold)
	assert.Empty(t, got["a.wxs"])
	assert.Equal(t, []string{"VAL-DUP-001"}, ruleIDs(got["b.wxs"]))

	p = &Project{Rules: []rules.Rule{}, Cache: open()}
	warm, err := p.Run(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stats().FromCache)
	for i := range warm {
		warm[i].FromCache = false
	}
	assert.Equal(t, cold, warm)
}

func TestRunAppliesConfig(t *testing.T) {
	_, paths := writeProject(t, map[string]string{
		"product.wxs":           productSource,
		"files.wxs":             filesSource,
		"generated/skipped.wxs": dupSource,
	})
	cfg := config.Default()
	cfg.Cache.Enabled = false
	cfg.Rules.Disabled = []string{"DEAD-*"}
	cfg.Rules.Severity = map[string]string{"T-001": "info"}
	cfg.MinSeverity = "low"
	cfg.Exclude = []string{"**/generated/**"}

	p := &Project{Config: cfg, Rules: componentRule()}
	results, err := p.Run(context.Background(), paths)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 1, p.Stats().Excluded)
	got := byFile(results)
	assert.Empty(t, got["files.wxs"], "T-001 drops below the minimum and DEAD-003 is disabled")
	assert.Equal(t, []string{CheckReference}, ruleIDs(got["product.wxs"]))
}

func TestRunStopsOnCancel(t *testing.T) {
	_, paths := writeProject(t, map[string]string{
		"product.wxs": productSource,
		"files.wxs":   filesSource,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Project{Rules: componentRule()}).Run(ctx, paths)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadRulesReplacesBuiltinByID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: custom
version: "1"
rules:
  - id: SEC-001
    severity: info
    category: security
    element: ServiceInstall
    condition: never
    message: replaced
  - id: CUSTOM-001
    severity: low
    category: best-practice
    element: Component
    condition: always
    message: custom
`), 0o644))
	cfg := config.Default()
	cfg.Rules.Files = []string{path}

	rs, err := LoadRules(cfg, nil)
	require.NoError(t, err)
	assert.Len(t, rs, len(DefaultRules())+1)
	for _, r := range rs {
		if r.ID == "SEC-001" {
			assert.Equal(t, "replaced", r.Message)
		}
	}
	assert.Equal(t, "CUSTOM-001", rs[len(rs)-1].ID)
}
