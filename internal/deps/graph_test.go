package deps

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wixlint/internal/document"
)

func chain(names ...string) *Graph {
	g := New()
	for _, n := range names {
		g.AddDependency(Dependency{Name: n, Type: Package})
	}
	for i := 0; i+1 < len(names); i++ {
		g.AddEdge(names[i], names[i+1])
	}
	return g
}

func TestCycleIsReportedWithExactlyItsMembers(t *testing.T) {
	g := chain("A", "B", "C")
	require.True(t, g.AddEdge("C", "A"))

	cycles := g.DetectCycles()
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, cycles[0])

	_, err := g.TopologicalSort()
	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "Circular dependency detected: A -> B -> C -> A", ce.Error())
}

func TestSelfLoopIsACycle(t *testing.T) {
	g := chain("A")
	require.True(t, g.AddEdge("A", "A"))
	assert.Equal(t, [][]string{{"A"}}, g.DetectCycles())
	_, err := g.TopologicalSort()
	assert.EqualError(t, err, "Circular dependency detected: A -> A")
}

func TestTopologicalSortOfChain(t *testing.T) {
	order, err := chain("A", "B", "C").TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestAddEdgeRequiresBothNodes(t *testing.T) {
	g := chain("A")
	assert.False(t, g.AddEdge("A", "missing"))
	assert.False(t, g.AddEdge("missing", "A"))

	g.AddDependency(Dependency{Name: "B"})
	require.True(t, g.AddEdge("A", "B"))
	b, _ := g.Get("B")
	assert.Equal(t, []string{"A"}, b.RequiredBySorted())
	assert.Equal(t, "A", g.RootDependencies()[0].Dependency.Name)
	assert.Equal(t, "B", g.LeafDependencies()[0].Dependency.Name)
}

func TestMergeKeepsEdges(t *testing.T) {
	g := chain("A", "B")
	g.Merge(chain("B", "C"))
	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

const bundleSource = `<Wix xmlns="http://wixtoolset.org/schemas/v4/wxs"
     xmlns:util="http://wixtoolset.org/schemas/v4/wxs/util"
     xmlns:bal="http://wixtoolset.org/schemas/v4/wxs/bal">
  <Bundle Name="App" Version="1.0.0">
    <Chain>
      <ExePackage Id="vcredist_x64" SourceFile="vc_redist.x64.exe" Vital="no" />
      <MsiPackage Id="App" SourceFile="app.msi" After="vcredist_x64" />
      <ExePackage Id="NetFx48" DownloadUrl="https://example.invalid/ndp48.exe" />
    </Chain>
  </Bundle>
  <Fragment>
    <Merge Id="CRT" SourceFile="crt.msm" />
    <InstallExecuteSequence>
      <Custom Action="SetPaths" Before="Configure" />
      <Custom Action="Configure" After="InstallFiles" />
    </InstallExecuteSequence>
    <UIRef Id="WixUI_Minimal" />
  </Fragment>
</Wix>`

func TestExtract(t *testing.T) {
	doc, err := document.Parse(bundleSource, "bundle.wxs")
	require.NoError(t, err)
	g := Extract(doc)

	vc, ok := g.Get("vcredist_x64")
	require.True(t, ok)
	assert.Equal(t, VCRuntime, vc.Dependency.Type)
	assert.False(t, vc.Dependency.Required)
	assert.Equal(t, 6, vc.Dependency.Location.Line)

	app, _ := g.Get("App")
	assert.Equal(t, []string{"vcredist_x64"}, app.DependsOnSorted())

	netfx, _ := g.Get("NetFx48")
	assert.Equal(t, DotNetFramework, netfx.Dependency.Type)
	assert.False(t, netfx.Dependency.Bundled)

	crt, _ := g.Get("CRT")
	assert.Equal(t, MergeModule, crt.Dependency.Type)

	configure, _ := g.Get("Configure")
	assert.Equal(t, []string{"InstallFiles", "SetPaths"}, configure.DependsOnSorted())
	assert.Empty(t, configure.RequiredBySorted())

	for _, ext := range []string{"WixUtilExtension", "WixBalExtension", "WixUIExtension"} {
		n, ok := g.Get(ext)
		require.True(t, ok, ext)
		assert.Equal(t, WixExtension, n.Dependency.Type)
	}
	assert.Empty(t, g.DetectCycles())
}

func TestExtensionForNamespace(t *testing.T) {
	assert.Equal(t, "WixUtilExtension", ExtensionForNamespace("http://schemas.microsoft.com/wix/UtilExtension"))
	assert.Equal(t, "WixNetFxExtension", ExtensionForNamespace("http://wixtoolset.org/schemas/v4/wxs/netfx"))
	assert.Equal(t, "", ExtensionForNamespace("http://wixtoolset.org/schemas/v4/wxs"))
}

func TestNewReport(t *testing.T) {
	doc, err := document.Parse(bundleSource, "bundle.wxs")
	require.NoError(t, err)
	r := NewReport("bundle.wxs", Extract(doc))

	assert.Equal(t, r.Total, r.Bundled+r.External)
	assert.Equal(t, 3, r.ByType["WiX Extension"])
	assert.Empty(t, r.Cycles)
	assert.Len(t, r.Order, r.Total)
	require.Len(t, r.Extensions, 3)
	assert.Equal(t, "WixToolset.Bal.wixext", r.Extensions[0].Package)
}
