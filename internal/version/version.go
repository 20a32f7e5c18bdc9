// Package version exposes build metadata injected at link time.
package version

import "runtime/debug"

// Set via -ldflags "-X github.com/weavelabs/weave-go/internal/version.Version=v1.2.3".
var (
	Version = "dev"
	Commit  = ""
)

// String returns a human-readable version, falling back to module build
// info when no ldflags were provided.
func String() string {
	if Version != "dev" {
		if Commit != "" {
			return Version + " (" + Commit + ")"
		}
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}
