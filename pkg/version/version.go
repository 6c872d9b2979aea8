// Package version exposes the build identity stamped into the quarry
// binary.
package version

import (
	"fmt"
	"runtime"
)

// Overridden at build time, e.g.
//
//	go build -ldflags "-X github.com/quarryhq/quarry/pkg/version.Version=v1.2.3"
var (
	// Version is the release version, "dev" for untagged builds.
	Version = "dev"

	// Commit is the short git commit hash.
	Commit = "unknown"

	// Date is the build date in RFC3339 format.
	Date = "unknown"
)

// Info describes the running binary. Field tags shape the JSON that
// `quarry version --json` emits.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	GoVersion string `json:"go_version"`
}

// GetInfo reports the build identity plus runtime platform facts.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		GoVersion: runtime.Version(),
	}
}

// String renders the one-line form `quarry version` prints.
func String() string {
	return fmt.Sprintf("quarry %s (commit: %s, built: %s, go: %s)",
		Version, Commit, Date, runtime.Version())
}

// Short returns the bare version number.
func Short() string {
	return Version
}
