// Package version carries build metadata for the tablelink binaries.
//
// Release builds stamp these via ldflags, for example:
//
//	go build -ldflags "\
//	  -X github.com/nullspace-games/tablelink/internal/version.Version=$(git describe --tags) \
//	  -X github.com/nullspace-games/tablelink/internal/version.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/nullspace-games/tablelink/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	  ./cmd/tablelink
//
// Unstamped builds report "dev", which is how local runs show up in the
// startup log line.
package version

var (
	// Version is the release tag, or "dev" for unstamped builds.
	Version = "dev"

	// Commit is the short git hash the binary was built from.
	Commit = "unknown"

	// BuildTime is the UTC build timestamp, ISO 8601.
	BuildTime = "unknown"
)

// String formats the build metadata for log lines and --version output.
func String() string {
	return "tablelink " + Version + " (" + Commit + ", " + BuildTime + ")"
}
