// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the engine's standard CBOR encoding
// configuration.
//
// Custodia uses two serialization formats with a clear boundary:
//
//   - JSON for external interfaces: CLI output and configuration
//     documents an operator edits by hand.
//   - CBOR for internal protocols: the treasury service socket,
//     capability tokens, journal entry payloads, and journal
//     snapshots.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding
// (RFC 8949 §4.2). Determinism is load-bearing: capability tokens are
// Ed25519-signed over their encoded payload and journal entries are
// BLAKE3 hash-chained over theirs, so the same logical value must
// always encode to the same bytes.
//
// For buffer-oriented operations (tokens, journal payloads):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the service socket, snapshots):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
package codec
