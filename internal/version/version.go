// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/ssefeed/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/ssefeed/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/ssefeed/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/ssewatch
//
// Without ldflags, Commit and BuildTime fall back to the VCS stamp the go
// command embeds.
package version

import "runtime/debug"

// Build-time variables (set via ldflags)
var (
	// Version is the semantic version (e.g., "1.0.0")
	Version = "dev"

	// Commit is the git commit hash (short form)
	Commit = "unknown"

	// BuildTime is the UTC build timestamp (ISO 8601)
	BuildTime = "unknown"
)

var readBuildInfo = debug.ReadBuildInfo

// String returns a formatted version string.
func String() string {
	commit, built := resolve()
	return Version + " (" + commit + ") built " + built
}

// UserAgent returns the User-Agent sent on stream requests.
func UserAgent() string {
	return "ssewatch/" + Version
}

// resolve fills unset ldflags values from the embedded VCS settings.
func resolve() (commit, built string) {
	commit, built = Commit, BuildTime
	if commit != "unknown" && built != "unknown" {
		return commit, built
	}

	info, ok := readBuildInfo()
	if !ok {
		return commit, built
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "unknown" && s.Value != "" {
				commit = s.Value
				if len(commit) > 7 {
					commit = commit[:7]
				}
			}
		case "vcs.time":
			if built == "unknown" && s.Value != "" {
				built = s.Value
			}
		}
	}
	return commit, built
}
