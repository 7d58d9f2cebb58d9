package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wixlint/internal/condition"
	"wixlint/internal/diag"
	"wixlint/internal/document"
)

func TestPreviewDiagnosticFixes(t *testing.T) {
	set, err := Builtin()
	require.NoError(t, err)
	doc, err := document.Parse(fixture, "product.wxs")
	require.NoError(t, err)
	got, _ := NewEngine(set.Rules, Options{}).Evaluate(doc, condition.NewEvaluator())

	byRule := map[string]diag.Diagnostic{}
	for _, d := range got {
		byRule[d.RuleID] = d
	}

	patch, err := PreviewDiagnostic(doc, byRule["SEC-005"])
	require.NoError(t, err)
	assert.Contains(t, patch, "--- a/product.wxs")
	assert.Contains(t, patch, "+++ b/product.wxs")
	assert.Contains(t, patch, `-    <Property Id="DB_PASSWORD" Value="hunter2" />`)
	assert.Contains(t, patch, `+    <Property Id="DB_PASSWORD" />`)

	patch, err = PreviewDiagnostic(doc, byRule["BP-IDIOM-001"])
	require.NoError(t, err)
	assert.Contains(t, patch, `<MajorUpgrade DowngradeErrorMessage="A newer version is already installed." />`)

	patch, err = PreviewDiagnostic(doc, byRule["DEAD-005"])
	require.NoError(t, err)
	assert.Empty(t, patch, "no fix attached")
}

func TestApplyFixResolvesTheReportedIssue(t *testing.T) {
	set, err := Builtin()
	require.NoError(t, err)
	eng := NewEngine(set.Rules, Options{})

	doc, err := document.Parse(`<Wix><Fragment><Component Id="cmpMain"><RegistryValue Type="string"/></Component></Fragment></Wix>`, "c.wxs")
	require.NoError(t, err)
	got, _ := eng.Evaluate(doc, condition.NewEvaluator())
	require.Len(t, got, 1)
	require.Equal(t, "VAL-ATTR-001", got[0].RuleID)

	id, ok := NodeAt(doc, got[0].Location.Line, got[0].Location.Col)
	require.True(t, ok)
	fixed, err := ApplyFix(doc, id, *got[0].Fix)
	require.NoError(t, err)
	assert.Contains(t, fixed, `<Component Id="cmpMain" Guid="*">`)

	again, err := document.Parse(fixed, "c.wxs")
	require.NoError(t, err)
	after, _ := eng.Evaluate(again, condition.NewEvaluator())
	assert.Empty(t, after)
}

func TestApplyFixRejectsUnknownKinds(t *testing.T) {
	doc, err := document.Parse(`<Wix/>`, "w.wxs")
	require.NoError(t, err)
	_, err = ApplyFix(doc, 0, diag.Fix{Action: diag.FixAction{Kind: "rewrite-everything"}})
	assert.Error(t, err)

	_, ok := NodeAt(doc, 9, 9)
	assert.False(t, ok)
}
