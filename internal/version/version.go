// Package version holds build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set at build time, e.g.
//
//	go build -ldflags "-X github.com/egoavara/plugforge/internal/version.Version=v1.2.0"
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

// Short returns Version with the abbreviated commit when one is known.
func Short() string {
	if len(GitCommit) >= 7 {
		return Version + " (" + GitCommit[:7] + ")"
	}
	return Version
}

// String describes the build on one line: version, commit, build date and
// the Go toolchain and platform it was built for.
func String() string {
	parts := []string{Short()}
	if BuildDate != "" {
		parts = append(parts, "built "+BuildDate)
	}
	parts = append(parts, fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH))
	return strings.Join(parts, ", ")
}
