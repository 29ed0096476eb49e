// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Custodia-treasury-service is the custody daemon. It owns the pooled
// ledger and its append-only journal, and exposes every treasury
// operation over a CBOR unix socket. On first boot it creates the
// ledger from the genesis document; afterwards it rebuilds state by
// replaying the journal, so the genesis file is read exactly once.
// Capability tokens for the release path are signed with an Ed25519
// keypair kept in the state directory.
package main
