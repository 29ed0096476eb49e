// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package treasury implements the custody engine: a shared ledger of
// pooled funds that can only be released through one of two controlled
// paths.
//
// The first path is capability-gated. [Initialize] creates the ledger
// together with exactly one [Capability], an unforgeable handle whose
// possession is the entire authorization proof for
// [Ledger.ReleaseViaCapability] — the ledger performs no further
// identity check. The capability's only constructor is private to
// initialization, so a *Capability in hand is, by construction, one
// the ledger issued.
//
// The second path is a multi-party approval workflow. Principals on
// the approver roster open withdrawal proposals; other approvers add
// approvals; once the approval count reaches the configured quorum,
// any principal may trigger execution. Execution is mechanical — it
// re-checks quorum and balance, not the identity of whoever pulled
// the trigger.
//
// The engine enforces custody mechanics only: balance accounting,
// authorization checks, and approval bookkeeping. Whether a proposal
// is a good idea is someone else's problem, decided before the
// capability or the approvals arrive here.
//
// Concurrency: the ledger is a single shared mutable aggregate. Every
// public operation runs to completion under one mutex, so operations
// are atomic and serializable — a failed operation leaves the ledger
// exactly as it found it and writes nothing to the journal. There is
// no internal concurrency, no background work, and no cancellation:
// every operation is bounded by the roster size and returns promptly.
//
// Every successful mutation appends one or more entries to the
// configured journal (lib/journal); the journal is how the outside
// world observes the ledger's history, and it is complete: [Restore]
// rebuilds a ledger, its roster, and its capability by replaying the
// journal from its genesis entry.
package treasury
