// Package version provides version information for the binary.
package version

import (
	"fmt"
	"runtime"
)

// Version is set at build time using -ldflags.
var Version = "dev"

// Commit is the source revision, set at build time using -ldflags.
var Commit = "none"

// BuildTime is when the binary was built.
var BuildTime = "unknown"

// String returns the formatted version information.
func String() string {
	return fmt.Sprintf("ifcglb version %s (commit %s, built %s, %s/%s)", Version, Commit, BuildTime, runtime.GOOS, runtime.GOARCH)
}
