// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command tree and output helpers for the
// custodia command-line tool.
//
// Commands form a tree of [Command] values dispatched by positional
// arguments, with pflag flag sets built lazily per command. Help
// output, typo suggestions, JSON output, and exit-code handling are
// shared here so the leaf commands stay small.
package cli
