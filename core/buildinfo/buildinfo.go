package buildinfo

// Set through -ldflags at build time:
//
//	-X 'github.com/m3rciful/botgate/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/botgate/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/botgate/core/buildinfo.Date=2026-08-31T12:00:00Z'
//
// The defaults cover local development builds.
var (
	// Version is the tag or semantic version of the build.
	Version = "dev"
	// Commit is the source control revision.
	Commit = "local"
	// Date is the build timestamp in RFC3339.
	Date = ""
)
