// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

import "fmt"

// Set at build time with -ldflags "-X".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// VersionString formats the build information for display.
func VersionString() string {
	return fmt.Sprintf("Version: %s\nSha: %s\nBuilt at: %s", Version, Sha, Buildtime)
}
