// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package treasury

import (
	"slices"

	"github.com/custodia-foundation/custodia/lib/ref"
)

// Proposal is a pending (or executed) multi-party withdrawal request.
//
// Lifecycle: Open → Executed. Executed is terminal — there is no
// rejected or cancelled state. A proposal that never reaches quorum
// simply stays open, and executed proposals are retained forever, so
// the proposal table doubles as withdrawal history.
//
// Values returned by [Ledger.Proposal] and [Ledger.Proposals] are
// snapshots: mutating them does not affect the ledger.
type Proposal struct {
	// ID is the proposal's stable identifier, assigned from the
	// ledger's monotonic counter at creation. Never reused.
	ID uint64 `json:"id"`

	// Proposer opened the proposal and counts as its first
	// approval.
	Proposer ref.Principal `json:"proposer"`

	// Recipient receives the funds on execution.
	Recipient ref.Principal `json:"recipient"`

	// Amount is the requested amount in the smallest fund unit.
	Amount uint64 `json:"amount"`

	// Reason is the proposer's free-text justification, bounded by
	// the ledger's configured maximum length.
	Reason string `json:"reason,omitempty"`

	// Approvals is the ordered set of principals that have approved,
	// starting with the proposer. No principal appears twice.
	//
	// An approval is not withdrawn when its principal later leaves
	// the roster — it continues to count toward quorum.
	Approvals []ref.Principal `json:"approvals"`

	// Executed reports whether the withdrawal has been carried out.
	// Set once, never cleared.
	Executed bool `json:"executed"`
}

// HasApproved reports whether the given principal is already in the
// approval set.
func (p *Proposal) HasApproved(principal ref.Principal) bool {
	return slices.Contains(p.Approvals, principal)
}

// snapshot returns a deep copy safe to hand outside the ledger lock.
func (p *Proposal) snapshot() Proposal {
	copied := *p
	copied.Approvals = slices.Clone(p.Approvals)
	return copied
}
