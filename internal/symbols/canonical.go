package symbols

var canonicalTypes = map[string]string{
	"Component":         "Component",
	"ComponentGroup":    "Component",
	"ComponentRef":      "Component",
	"ComponentGroupRef": "Component",

	"Directory":         "Directory",
	"StandardDirectory": "Directory",
	"DirectoryRef":      "Directory",

	"Feature":         "Feature",
	"FeatureGroup":    "Feature",
	"FeatureRef":      "Feature",
	"FeatureGroupRef": "Feature",

	"Property":    "Property",
	"PropertyRef": "Property",

	"CustomAction":    "CustomAction",
	"CustomActionRef": "CustomAction",

	"Binary":    "Binary",
	"BinaryRef": "Binary",

	"Package": "Package",
	"Module":  "Package",
	"Bundle":  "Package",

	"Fragment": "Fragment",
}

// Canonical maps an element or reference name to its canonical type. Names
// outside the table are their own bucket.
func Canonical(name string) string {
	if c, ok := canonicalTypes[name]; ok {
		return c
	}
	return name
}

var definitionElements = map[string]struct{}{
	"Component": {}, "ComponentGroup": {},
	"Directory": {}, "StandardDirectory": {},
	"Feature": {}, "FeatureGroup": {},
	"Property":     {},
	"CustomAction": {},
	"Binary":       {},
	"Fragment":     {},
	"Package":      {}, "Module": {}, "Bundle": {},
}

var referenceElements = map[string]struct{}{
	"ComponentRef": {}, "ComponentGroupRef": {},
	"DirectoryRef": {},
	"FeatureRef":   {}, "FeatureGroupRef": {},
	"PropertyRef":     {},
	"CustomActionRef": {},
	"BinaryRef":       {},
}

// IsDefinitionElement reports whether elements of this kind define symbols.
func IsDefinitionElement(kind string) bool {
	_, ok := definitionElements[kind]
	return ok
}

// IsReferenceElement reports whether elements of this kind reference symbols.
func IsReferenceElement(kind string) bool {
	_, ok := referenceElements[kind]
	return ok
}

// StandardDirectories are the well-known Windows Installer folders that
// never appear as definitions in source.
var StandardDirectories = []string{
	"TARGETDIR",
	"ProgramFilesFolder",
	"ProgramFiles64Folder",
	"ProgramFiles6432Folder",
	"CommonFilesFolder",
	"CommonFiles64Folder",
	"SystemFolder",
	"System64Folder",
	"WindowsFolder",
	"TempFolder",
	"LocalAppDataFolder",
	"AppDataFolder",
	"CommonAppDataFolder",
	"DesktopFolder",
	"StartMenuFolder",
	"ProgramMenuFolder",
	"StartupFolder",
	"PersonalFolder",
	"FontsFolder",
}
