// Package meta reports what build of the tool is running. The version is
// also the cache and baseline compatibility key.
package meta

import (
	"runtime"
	"runtime/debug"
	"strings"
)

// Version is overridden at link time with
// -ldflags "-X wixlint/internal/meta.Version=1.2.3".
var Version = "0.4.0"

// Info is a minimal summary of the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Detect collects Info from the embedded build settings. Missing settings
// leave their fields empty.
func Detect() Info {
	inf := Info{
		Version:   Version,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return inf
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			inf.Commit = s.Value
		case "vcs.modified":
			inf.Modified = s.Value == "true"
		}
	}
	return inf
}

// String renders "1.2.3 (abcdef012345, dirty) go1.24 linux/amd64".
func (i Info) String() string {
	var b strings.Builder
	b.WriteString(i.Version)
	if i.Commit != "" {
		c := i.Commit
		if len(c) > 12 {
			c = c[:12]
		}
		b.WriteString(" (" + c)
		if i.Modified {
			b.WriteString(", dirty")
		}
		b.WriteString(")")
	}
	b.WriteString(" " + i.GoVersion + " " + i.Platform)
	return b.String()
}
