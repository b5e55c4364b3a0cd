// Package version carries the build identity stamped in via -ldflags.
package version

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns the one-line form used in logs and the health endpoint.
func String() string {
	return Version + " (" + GitSHA + ", built " + BuildTime + ")"
}
