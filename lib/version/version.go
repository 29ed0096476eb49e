// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build version information for Custodia
// binaries.
//
// Release builds inject the fields via -ldflags:
//
//	go build -ldflags "\
//	  -X github.com/custodia-foundation/custodia/lib/version.Version=1.2.0 \
//	  -X github.com/custodia-foundation/custodia/lib/version.GitCommit=$(git rev-parse --short HEAD) \
//	  -X github.com/custodia-foundation/custodia/lib/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// A plain `go build` gets the commit and dirty flag from the VCS
// metadata the toolchain embeds, so --version output is useful even
// without the ldflags incantation.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set via -ldflags at build time; see the package documentation.
var (
	// Version is the semantic version, set manually for releases.
	Version = "0.1.0-dev"

	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty is "true" when the build had uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)

var resolveOnce sync.Once

// resolve backfills GitCommit and GitDirty from the embedded build
// info when ldflags left them at their defaults.
func resolve() {
	if GitCommit != "unknown" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if len(setting.Value) >= 12 {
				GitCommit = setting.Value[:12]
			} else if setting.Value != "" {
				GitCommit = setting.Value
			}
		case "vcs.modified":
			GitDirty = setting.Value
		}
	}
}

// Info returns a one-line version string suitable for --version
// output.
func Info() string {
	resolveOnce.Do(resolve)
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full returns Info plus the Go toolchain version and target
// platform, one detail per line.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
