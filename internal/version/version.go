// Package version carries build-time identification, in the shape of
// the teacher's dockerversion package: package-level vars overwritten
// via -ldflags at build time, defaulting to "dev" placeholders when
// built without them (e.g. `go run`).
package version

// Version, GitCommit and BuildTime are set at build time with:
//
//	go build -ldflags "-X github.com/intercc/intercc/internal/version.Version=1.2.3 ..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String renders the one-line form printed by -v/--version.
func String() string {
	return "intercc version " + Version + ", build " + GitCommit + " (" + BuildTime + ")"
}
