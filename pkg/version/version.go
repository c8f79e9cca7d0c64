// Package version exposes build metadata for the branchweight binary.
package version

import "runtime/debug"

// Set at build time via -ldflags "-X .../pkg/version.Version=...".
var (
	// Version is the release version of the running binary.
	Version = "dev"
	// Commit is the Git hash of the branchweight binary which is executing.
	Commit = "<unknown>"
	// Date is the build timestamp.
	Date = ""
)

// String returns a single-line version description, falling back to module
// build info when ldflags were not set.
func String() string {
	if Version != "dev" {
		return Version + " (" + Commit + ")"
	}

	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}

	return Version
}
