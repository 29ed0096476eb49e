// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for Custodia
// components.
//
// Configuration is loaded from a single file specified by either the
// CUSTODIA_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${CUSTODIA_ROOT}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// The genesis document is separate from the service configuration:
// it is a JSONC file (JSON with comments and trailing commas) read
// exactly once, when the service boots with an empty state
// directory, and it fixes the initial approver roster, the quorum,
// and the capability holder. After genesis the journal is the source
// of truth and the file is ignored. See [Genesis], [ParseGenesis],
// and [LoadGenesis].
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Service, Ledger
//   - [Default] -- returns a Config with defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Genesis] and [LoadGenesis] -- the ledger creation document
//
// This package depends on lib/ref for principal parsing and on no
// other Custodia packages.
package config
