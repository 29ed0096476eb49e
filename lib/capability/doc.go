// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability implements Ed25519-signed bearer tokens that
// carry a treasury access capability across process boundaries.
//
// Inside one process, the capability is the sealed handle issued by
// treasury.Initialize: possession of the pointer is the
// authorization, and nothing needs to be signed. That stops working
// the moment the holder is a separate process talking to the treasury
// service over a socket. This package is the wire form: the service
// mints a signed token naming the capability and its current holder,
// and the holder presents the token with each governance release
// request.
//
// # Wire format
//
// A token is raw bytes: CBOR-encoded payload followed by a 64-byte
// Ed25519 signature over the payload bytes.
//
//	[CBOR payload bytes] [64-byte Ed25519 signature]
//
// The split point is always len(token) - 64. No header, no length
// prefix, no base64 — the algorithm is fixed and the signature size
// is constant.
//
// # Lifecycle
//
//   - The service generates its signing keypair on first boot and
//     persists it in the state directory.
//   - A token is minted for the genesis holder at initialization and
//     re-minted on every capability transfer; transfers invalidate
//     nothing cryptographically, so tokens carry a short TTL and the
//     service additionally checks the named holder against the
//     ledger's current holder record.
//   - Verification is offline: signature, expiry, then ledger binding.
//     A token minted for one ledger is useless against another.
package capability
