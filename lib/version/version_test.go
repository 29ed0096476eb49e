// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfoMarksDirtyBuilds(t *testing.T) {
	origCommit, origDirty := GitCommit, GitDirty
	defer func() { GitCommit, GitDirty = origCommit, origDirty }()

	GitCommit = "abc123def456"
	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "abc123def456-dirty") {
		t.Errorf("Info() = %q, want commit with -dirty suffix", got)
	}

	GitDirty = "false"
	if got := Info(); strings.Contains(got, "-dirty") {
		t.Errorf("Info() = %q, should not be marked dirty", got)
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	full := Full()
	if !strings.Contains(full, "Go: go") {
		t.Errorf("Full() = %q, want embedded Go version", full)
	}
	if !strings.Contains(full, "Platform: ") {
		t.Errorf("Full() = %q, want platform line", full)
	}
}
