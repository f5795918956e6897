// Package build provides build-time information, the values are set by ldflags.
package build

var (
	BuildVersion = "dev"
	GitCommit    = "-"
	BuildDate    = "-"
)
