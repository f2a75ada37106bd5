// Package version carries build metadata injected at link time:
//
//	go build -ldflags "-X github.com/valterebelo/polymarket-crypto-tools/internal/version.Version=0.3.0 \
//	                   -X github.com/valterebelo/polymarket-crypto-tools/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/valterebelo/polymarket-crypto-tools/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"

	// Commit is the short git commit hash.
	Commit = "unknown"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// String renders the version line used by -version and startup logs.
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
