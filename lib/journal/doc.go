// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal is the treasury's append-only audit log.
//
// Every state-changing ledger operation emits one or more entries:
// deposits, capability releases, proposal lifecycle events, roster and
// quorum changes. Failed operations emit nothing — an entry in the
// journal means the mutation it describes was applied. Operations
// that emit several entries commit them as one atomic batch, so the
// journal never records half of a mutation.
//
// Entries are enveloped with a sequence number (monotonic from 1), an
// RFC 3339 UTC timestamp, and a BLAKE3 hash chain: each entry's hash
// covers its own fields plus the previous entry's hash, so truncation
// or rewriting anywhere in the log is detectable from the head alone.
// Payloads are deterministic CBOR (lib/codec), which makes the chain
// reproducible from the decoded form.
//
// Two implementations of [Journal] are provided. [Memory] keeps
// entries in process with offset-based catch-up reads and subscriber
// fan-out — the shape a relay or test harness wants. [Store] persists
// entries to SQLite and verifies the hash chain on open — the shape a
// deployment wants. [WriteSnapshot] and [ReadSnapshot] move a journal
// between them as a zstd-compressed CBOR stream for offline audit.
package journal
