package deps

import (
	"strings"

	"wixlint/internal/diag"
	"wixlint/internal/document"
)

var chainPackages = map[string]bool{
	"ExePackage":    true,
	"MsiPackage":    true,
	"MspPackage":    true,
	"MsuPackage":    true,
	"BundlePackage": true,
}

// extensionByNamespace maps the last segment of an extension namespace URI
// (v4 "…/wxs/util", v3 "…/wix/UtilExtension") to the extension name.
var extensionByNamespace = map[string]string{
	"ui":         "WixUIExtension",
	"util":       "WixUtilExtension",
	"netfx":      "WixNetFxExtension",
	"firewall":   "WixFirewallExtension",
	"iis":        "WixIIsExtension",
	"sql":        "WixSqlExtension",
	"bal":        "WixBalExtension",
	"dependency": "WixDependencyExtension",
	"http":       "WixHttpExtension",
	"complus":    "WixComPlusExtension",
	"msmq":       "WixMsmqExtension",
	"difxapp":    "WixDifxAppExtension",
	"directx":    "WixDirectXExtension",
	"vs":         "WixVSExtension",
	"gaming":     "WixGamingExtension",
	"powershell": "WixPSExtension",
}

// Extract builds the dependency graph of one document:
//
//   - chained bundle packages, with an edge for each After attribute;
//   - sequenced custom actions, with an edge for After and Before;
//   - merge modules;
//   - WiX extensions declared through xmlns prefixes or implied by a UIRef.
func Extract(doc *document.Document) *Graph {
	g := New()
	var edges [][2]string
	doc.Walk(func(id document.NodeID) bool {
		kind := doc.Kind(id)
		switch {
		case chainPackages[kind]:
			d := packageDependency(doc, id)
			if d.Name == "" {
				return true
			}
			g.AddDependency(d)
			if after, ok := doc.Attr(id, "After"); ok && after != "" {
				edges = append(edges, [2]string{d.Name, after})
			}
		case kind == "Custom":
			action, _ := doc.Attr(id, "Action")
			if action == "" {
				return true
			}
			ensure(g, doc, id, action, CustomAction)
			if after, ok := doc.Attr(id, "After"); ok && after != "" {
				ensure(g, doc, id, after, CustomAction)
				edges = append(edges, [2]string{action, after})
			}
			if before, ok := doc.Attr(id, "Before"); ok && before != "" {
				ensure(g, doc, id, before, CustomAction)
				edges = append(edges, [2]string{before, action})
			}
		case kind == "Merge":
			name, _ := doc.Attr(id, "Id")
			if name == "" {
				return true
			}
			src, _ := doc.Attr(id, "SourceFile")
			g.AddDependency(Dependency{
				Name:       name,
				Type:       MergeModule,
				Required:   true,
				Bundled:    true,
				SourceFile: src,
				Location:   diag.NodeLocation(doc, id),
			})
		case kind == "UIRef":
			ensure(g, doc, id, "WixUIExtension", WixExtension)
		}
		for _, a := range doc.Attrs(id) {
			if !strings.HasPrefix(a.Name, "xmlns:") {
				continue
			}
			if ext := ExtensionForNamespace(a.Value); ext != "" {
				ensure(g, doc, id, ext, WixExtension)
			}
		}
		return true
	})
	for _, e := range edges {
		g.AddEdge(e[0], e[1])
	}
	return g
}

// ExtensionForNamespace names the WiX extension behind a namespace URI, or
// returns "" for the core schema and unknown URIs.
func ExtensionForNamespace(uri string) string {
	uri = strings.TrimRight(uri, "/")
	seg := strings.ToLower(uri[strings.LastIndex(uri, "/")+1:])
	return extensionByNamespace[strings.TrimSuffix(seg, "extension")]
}

// ensure adds a node unless one with that name already exists, so explicit
// declarations keep their richer payload.
func ensure(g *Graph, doc *document.Document, id document.NodeID, name string, t Type) {
	if _, ok := g.Get(name); ok {
		return
	}
	g.AddDependency(Dependency{
		Name:     name,
		Type:     t,
		Required: true,
		Bundled:  t != WixExtension,
		Location: diag.NodeLocation(doc, id),
	})
}

func packageDependency(doc *document.Document, id document.NodeID) Dependency {
	name, _ := doc.Attr(id, "Id")
	src, _ := doc.Attr(id, "SourceFile")
	if name == "" {
		name = src
	}
	if name == "" {
		name, _ = doc.Attr(id, "Name")
	}
	d := Dependency{
		Name:       name,
		Type:       classify(name, src),
		Required:   !isNo(doc, id, "Vital"),
		Bundled:    !isNo(doc, id, "Compressed"),
		SourceFile: src,
		Location:   diag.NodeLocation(doc, id),
	}
	d.Version, _ = doc.Attr(id, "Version")
	d.DownloadURL, _ = doc.Attr(id, "DownloadUrl")
	if d.DownloadURL != "" {
		if _, set := doc.Attr(id, "Compressed"); !set {
			d.Bundled = false
		}
	}
	return d
}

func isNo(doc *document.Document, id document.NodeID, attr string) bool {
	v, _ := doc.Attr(id, attr)
	return strings.EqualFold(v, "no")
}

// classify guesses a package's type from its id and source file name.
func classify(name, src string) Type {
	s := strings.ToLower(name + " " + src)
	switch {
	case strings.Contains(s, "vcredist") || strings.Contains(s, "vc_redist") || strings.Contains(s, "vcruntime"):
		return VCRuntime
	case strings.Contains(s, "netfx") || strings.Contains(s, "ndp4") || strings.Contains(s, "dotnetfx"):
		return DotNetFramework
	case strings.Contains(s, "dotnet") || strings.Contains(s, "windowsdesktop-runtime") || strings.Contains(s, "aspnetcore"):
		return DotNetCore
	case strings.Contains(s, "directx") || strings.Contains(s, "dxsetup"):
		return DirectX
	case strings.Contains(s, "windowssdk") || strings.Contains(s, "winsdk"):
		return WindowsSdk
	}
	return Package
}
