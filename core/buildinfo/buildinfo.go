// Package buildinfo carries version data stamped at link time:
//
//	-X 'github.com/m3rciful/airdropbot/core/buildinfo.Version=v1.0.0'
//	-X 'github.com/m3rciful/airdropbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/airdropbot/core/buildinfo.Date=2026-01-01T00:00:00Z'
package buildinfo

var (
	// Version is the release tag.
	Version = "dev"
	// Commit is the source revision.
	Commit = "local"
	// Date is the build time in RFC3339.
	Date = ""
)
