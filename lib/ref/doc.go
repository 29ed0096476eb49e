// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated identifier types for the treasury
// engine.
//
// A [Principal] is an addressable identity: anything that can call a
// treasury operation, sit on the approver roster, or be named as the
// recipient of a release. Principals are path-style localparts
// ("council/alice", "ops/payouts/bot") so deployments can namespace
// identities by team without the engine caring about the hierarchy.
//
// Identifier types are immutable value types constructed through Parse
// functions. The zero value is never valid; use IsZero to check. This
// keeps invalid identifiers out of the ledger by construction — a
// Principal that exists has already been validated.
package ref
