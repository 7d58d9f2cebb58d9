package meta

import (
	"strings"
	"testing"
)

func TestInfoString(t *testing.T) {
	i := Info{Version: "1.0.0", Commit: "0123456789abcdef", Modified: true, GoVersion: "go1.24", Platform: "linux/amd64"}
	if got, want := i.String(), "1.0.0 (0123456789ab, dirty) go1.24 linux/amd64"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestDetectCarriesVersion(t *testing.T) {
	inf := Detect()
	if inf.Version != Version {
		t.Fatalf("version %q, want %q", inf.Version, Version)
	}
	if !strings.Contains(inf.Platform, "/") {
		t.Fatalf("platform %q", inf.Platform)
	}
}
