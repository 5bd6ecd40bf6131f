// Package version exposes build information.
package version

import "fmt"

// Set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// GetInfo returns a human-readable version string.
func GetInfo() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
