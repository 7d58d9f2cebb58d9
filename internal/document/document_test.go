package document

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<?xml version="1.0" encoding="utf-8"?>
<Wix xmlns="http://wixtoolset.org/schemas/v4/wxs" xmlns:util="http://wixtoolset.org/schemas/v4/wxs/util">
  <!-- comment -->
  <Package Name="App" Version="1.0.0">
    <Component Id="C1" Guid="*">
      <File Source="a.exe" />
      <File Source="b.exe"></File>
    </Component>
    <Property Id="P1">value</Property>
  </Package>
</Wix>
`

func TestParseBuildsArenaWithParents(t *testing.T) {
	doc, err := Parse(sample, "product.wxs")
	require.NoError(t, err)

	root, ok := doc.Root()
	require.True(t, ok)
	assert.Equal(t, "Wix", doc.Kind(root))
	_, hasParent := doc.Parent(root)
	assert.False(t, hasParent)

	ns, ok := doc.Attr(root, "xmlns:util")
	require.True(t, ok)
	assert.Equal(t, "http://wixtoolset.org/schemas/v4/wxs/util", ns)

	comps := doc.Find("Component")
	require.Len(t, comps, 1)
	c := comps[0]
	assert.Equal(t, 2, doc.Depth(c))
	p, ok := doc.Parent(c)
	require.True(t, ok)
	assert.Equal(t, "Package", doc.Kind(p))
	for _, ch := range doc.Children(c) {
		parent, _ := doc.Parent(ch)
		assert.Equal(t, c, parent)
		assert.Equal(t, "File", doc.Kind(ch))
	}

	r := doc.Range(c)
	assert.Equal(t, 5, r.StartLine)
	assert.Equal(t, 5, r.StartCol)
	assert.Equal(t, 8, r.EndLine)

	props := doc.Find("Property")
	require.Len(t, props, 1)
	assert.Equal(t, "value", doc.Text(props[0]))
}

func TestWalkIsDocumentOrder(t *testing.T) {
	doc, err := Parse(sample, "product.wxs")
	require.NoError(t, err)
	var kinds []string
	doc.Walk(func(id NodeID) bool {
		kinds = append(kinds, doc.Kind(id))
		return true
	})
	assert.Equal(t, []string{"Wix", "Package", "Component", "File", "File", "Property"}, kinds)

	pkg := doc.Find("Package")[0]
	var below []string
	for _, id := range doc.Descendants(pkg) {
		below = append(below, doc.Kind(id))
	}
	assert.Equal(t, []string{"Component", "File", "File", "Property"}, below)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"unclosed":   "<Wix>\n  <Package>\n</Wix>",
		"empty":      "   ",
		"two roots":  "<A/><B/>",
		"stray text": "<A/>junk",
	}
	for name, src := range cases {
		_, err := Parse(src, "bad.wxs")
		var pe *ParseError
		require.Error(t, err, name)
		assert.True(t, errors.As(err, &pe), "%s: %T", name, err)
		assert.Equal(t, "bad.wxs", pe.File, name)
	}
}

func TestBuilderDepthAndText(t *testing.T) {
	b := NewBuilder("built.wxs")
	root := b.Root("Wix")
	pkg := b.Add(root, "Package", "Name", "App")
	comp := b.Add(pkg, "Component", "Id", "C1")
	f := b.Add(comp, "File")
	b.SetText(f, "hello")
	doc := b.Build()

	assert.Equal(t, 0, doc.Depth(root))
	assert.Equal(t, 3, doc.Depth(f))
	assert.Equal(t, "hello", doc.Text(f))
	assert.Equal(t, []NodeID{comp, pkg, root}, doc.Ancestors(f))
	v, ok := doc.Attr(pkg, "Name")
	assert.True(t, ok)
	assert.Equal(t, "App", v)
	assert.Equal(t, 4, doc.Range(f).StartLine)
}

func TestEditsRewriteSource(t *testing.T) {
	src := `<Wix><Component Id="C1" Guid="{1}"><File Source="a" /></Component><Package Name="x" /></Wix>`
	doc, err := Parse(src, "e.wxs")
	require.NoError(t, err)
	comp := doc.Find("Component")[0]

	e, err := doc.SetAttrEdit(comp, "Guid", "*")
	require.NoError(t, err)
	assert.Equal(t, `<Wix><Component Id="C1" Guid="*"><File Source="a" /></Component><Package Name="x" /></Wix>`, e.Apply(src))

	e, err = doc.RemoveAttrEdit(comp, "Guid")
	require.NoError(t, err)
	assert.Equal(t, `<Wix><Component Id="C1"><File Source="a" /></Component><Package Name="x" /></Wix>`, e.Apply(src))

	pkg := doc.Find("Package")[0]
	e, err = doc.InsertChildEdit(pkg, ElementMarkup("MajorUpgrade", []Attr{{Name: "DowngradeErrorMessage", Value: "newer"}}), true)
	require.NoError(t, err)
	assert.Equal(t, `<Wix><Component Id="C1" Guid="{1}"><File Source="a" /></Component><Package Name="x" ><MajorUpgrade DowngradeErrorMessage="newer" /></Package></Wix>`, e.Apply(src))

	e, err = doc.SetAttrEdit(pkg, "Version", "1.0")
	require.NoError(t, err)
	assert.Equal(t, `<Wix><Component Id="C1" Guid="{1}"><File Source="a" /></Component><Package Name="x" Version="1.0" /></Wix>`, e.Apply(src))

	e, err = doc.RemoveEdit(doc.Find("File")[0])
	require.NoError(t, err)
	assert.Equal(t, `<Wix><Component Id="C1" Guid="{1}"></Component><Package Name="x" /></Wix>`, e.Apply(src))

	built := NewBuilder("b.wxs")
	r := built.Root("Wix")
	_, err = built.Build().RemoveEdit(r)
	assert.ErrorIs(t, err, ErrNoSource)
}
