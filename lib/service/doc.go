// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the Unix socket surface of the treasury
// service.
//
// The treasury ledger (lib/treasury) is an in-process aggregate; this
// package puts it behind a CBOR request-response protocol so that the
// governance executor, approvers, and operators can reach it from
// separate processes. Three building blocks:
//
//   - Socket server: CBOR Unix socket server with action dispatch,
//     connection timeouts, and graceful shutdown.
//   - Client: one-connection-per-call CBOR client used by the CLI.
//   - Treasury handlers: the action set binding socket requests to
//     ledger operations and journal reads.
//
// # Trust boundary
//
// The capability release path is the only cryptographically
// authenticated surface: release, mint-token, and transfer-capability
// require a valid Ed25519 capability token (lib/capability) bound to
// this ledger and naming its current holder. Every other action carries a
// caller-asserted principal. The socket itself is the access control
// for those: deployments place it where only the approver group can
// reach it, and the journal records the asserted identity for audit.
package service
