// Package version carries build identification, injected at link time.
package version

// Overridden via -ldflags "-X huskycat/internal/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// String renders the full build identifier.
func String() string {
	return Version + " (" + GitCommit + ", " + BuildDate + ")"
}
