package deps

import "wixlint/internal/sortutil"

// Report summarises a graph for display.
type Report struct {
	Project      string           `json:"project"`
	Total        int              `json:"total"`
	Bundled      int              `json:"bundled"`
	External     int              `json:"external"`
	ByType       map[string]int   `json:"by_type"`
	Dependencies []Dependency     `json:"dependencies"`
	Cycles       [][]string       `json:"cycles,omitempty"`
	Order        []string         `json:"order,omitempty"`
	Extensions   []ExtensionEntry `json:"extensions,omitempty"`
}

// ExtensionEntry pairs an extension found in the graph with its description.
type ExtensionEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Package     string `json:"package"`
}

// NewReport counts g's nodes by type and bundling and records its cycles, or
// its install order when it has none.
func NewReport(project string, g *Graph) Report {
	r := Report{Project: project, ByType: make(map[string]int)}
	for _, n := range g.Nodes() {
		d := n.Dependency
		r.Total++
		if d.Bundled {
			r.Bundled++
		} else {
			r.External++
		}
		r.ByType[d.Type.String()]++
		r.Dependencies = append(r.Dependencies, d)
		if d.Type == WixExtension {
			info, _ := ExtensionInfo(d.Name)
			r.Extensions = append(r.Extensions, info)
		}
	}
	if order, err := g.TopologicalSort(); err == nil {
		r.Order = order
	} else {
		r.Cycles = g.DetectCycles()
	}
	return r
}

// TypeNames returns the keys of ByType, sorted.
func (r Report) TypeNames() []string { return sortutil.Keys(r.ByType) }

var extensions = map[string]ExtensionEntry{
	"WixUIExtension":         {Description: "Standard installer dialog sets", Package: "WixToolset.UI.wixext"},
	"WixUtilExtension":       {Description: "Users, groups, XML edits, shell execution and other utilities", Package: "WixToolset.Util.wixext"},
	"WixNetFxExtension":      {Description: ".NET Framework detection and install", Package: "WixToolset.Netfx.wixext"},
	"WixFirewallExtension":   {Description: "Windows Firewall exceptions", Package: "WixToolset.Firewall.wixext"},
	"WixIIsExtension":        {Description: "IIS web sites, app pools and virtual directories", Package: "WixToolset.Iis.wixext"},
	"WixSqlExtension":        {Description: "SQL Server databases and scripts", Package: "WixToolset.Sql.wixext"},
	"WixBalExtension":        {Description: "Bootstrapper application library", Package: "WixToolset.Bal.wixext"},
	"WixDependencyExtension": {Description: "Package dependency tracking", Package: "WixToolset.Dependency.wixext"},
	"WixHttpExtension":       {Description: "HTTP URL reservations and SSL bindings", Package: "WixToolset.Http.wixext"},
	"WixComPlusExtension":    {Description: "COM+ applications and components", Package: "WixToolset.ComPlus.wixext"},
	"WixMsmqExtension":       {Description: "Message queues", Package: "WixToolset.Msmq.wixext"},
	"WixDifxAppExtension":    {Description: "Driver installation", Package: "WixToolset.DifxApp.wixext"},
	"WixDirectXExtension":    {Description: "DirectX capability detection", Package: "WixToolset.DirectX.wixext"},
	"WixVSExtension":         {Description: "Visual Studio integration", Package: "WixToolset.VisualStudio.wixext"},
	"WixGamingExtension":     {Description: "Game Explorer registration", Package: "WixToolset.Gaming.wixext"},
	"WixPSExtension":         {Description: "PowerShell snap-ins", Package: "WixToolset.PowerShell.wixext"},
}

// ExtensionInfo describes a known WiX extension. Unknown names get an empty
// description and ok == false.
func ExtensionInfo(name string) (ExtensionEntry, bool) {
	e, ok := extensions[name]
	e.Name = name
	return e, ok
}
