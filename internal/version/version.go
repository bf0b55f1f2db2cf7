// Package version carries build metadata set through -ldflags, e.g.
//
//	-X github.com/banshee-data/contour.predict/internal/version.Version=v0.3.0
package version

import "fmt"

var (
	// Version is the release tag; stored with every recorded run.
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for -version output.
func String() string {
	return fmt.Sprintf("contour-predict %s (%s) built %s", Version, GitSHA, BuildTime)
}
