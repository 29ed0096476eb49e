// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Custodia is the unified CLI for interacting with a treasury service.
// It provides subcommands for funding (deposit), the multi-party
// withdrawal workflow (propose, approve, execute, proposal), roster and
// quorum management (approver, quorum), the governance capability
// (capability), and the audit journal (journal).
package main
