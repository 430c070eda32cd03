// Package version reports how the decl binary was built.
//
// Release builds stamp the values with
// -ldflags "-X github.com/coral-mesh/decl/pkg/version.Version=v0.1.0 ...".
package version

import (
	"runtime"
)

var (
	// Version is the release tag of the decl tool, "dev" for local builds.
	// It is unrelated to the payload schema version in model.Version.
	Version = "dev"

	// GitCommit is the commit decl was built from.
	GitCommit = "unknown"

	// BuildDate is when the binary was built, in RFC 3339.
	BuildDate = "unknown"

	// GoVersion is the toolchain that compiled the binary.
	GoVersion = runtime.Version()
)
