// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package treasury

import (
	"fmt"
	"slices"

	"github.com/custodia-foundation/custodia/lib/journal"
)

// Restore rebuilds a ledger from a previously written journal. The
// entries must be the complete verified journal, starting with the
// [journal.TypeLedgerInitialized] entry that [Initialize] wrote;
// replaying them reproduces the balance, roster, configuration,
// proposal table, and capability holder exactly as they stood when the
// last entry was appended. Nothing is appended during replay.
//
// jnl receives subsequent appends and is normally the same store the
// entries were read from. The roster policy is not journaled, so the
// caller supplies it again; nil means [SelfGoverningPolicy].
func Restore(jnl journal.Journal, policy RosterPolicy, entries []journal.Entry) (*Ledger, *Capability, error) {
	if jnl == nil {
		return nil, nil, fmt.Errorf("treasury: Journal is required")
	}
	if len(entries) == 0 {
		return nil, nil, fmt.Errorf("treasury: restore: journal is empty")
	}
	if entries[0].Type != journal.TypeLedgerInitialized {
		return nil, nil, fmt.Errorf("treasury: restore: journal starts with %q, want %q", entries[0].Type, journal.TypeLedgerInitialized)
	}
	if policy == nil {
		policy = SelfGoverningPolicy{}
	}

	var genesis journal.LedgerInitialized
	if err := entries[0].Decode(&genesis); err != nil {
		return nil, nil, err
	}

	ledger := &Ledger{
		id:              genesis.LedgerID,
		journal:         jnl,
		policy:          policy,
		minApprovals:    genesis.MinApprovals,
		maxApprovers:    genesis.MaxApprovers,
		maxReasonLength: genesis.MaxReasonLength,
		proposals:       make(map[uint64]*Proposal),
	}
	capability := &Capability{
		issuer: ledger,
		id:     genesis.CapabilityID,
		holder: genesis.InitialHolder,
	}
	ledger.capability = capability

	for i := range entries[1:] {
		entry := &entries[i+1]
		if err := ledger.replay(entry); err != nil {
			return nil, nil, fmt.Errorf("treasury: restore: entry %d: %w", entry.Seq, err)
		}
	}
	return ledger, capability, nil
}

// replay applies one journal entry to ledger state. Every mutation path
// has a case here; an unknown entry type aborts the restore rather than
// silently skipping history.
func (l *Ledger) replay(entry *journal.Entry) error {
	switch entry.Type {
	case journal.TypeFundsDeposited:
		var payload journal.FundsDeposited
		if err := entry.Decode(&payload); err != nil {
			return err
		}
		l.balance = payload.NewBalance

	case journal.TypeFundsWithdrawnByGovernance:
		var payload journal.FundsWithdrawnByGovernance
		if err := entry.Decode(&payload); err != nil {
			return err
		}
		l.balance = payload.RemainingBalance

	case journal.TypeWithdrawalProposed:
		var payload journal.WithdrawalProposed
		if err := entry.Decode(&payload); err != nil {
			return err
		}
		l.proposals[payload.ID] = &Proposal{
			ID:        payload.ID,
			Proposer:  payload.Proposer,
			Recipient: payload.Recipient,
			Amount:    payload.Amount,
			Reason:    payload.Reason,
		}
		if payload.ID >= l.nextProposalID {
			l.nextProposalID = payload.ID + 1
		}

	case journal.TypeWithdrawalApproved:
		var payload journal.WithdrawalApproved
		if err := entry.Decode(&payload); err != nil {
			return err
		}
		proposal, ok := l.proposals[payload.ID]
		if !ok {
			return fmt.Errorf("approval for unknown proposal %d", payload.ID)
		}
		proposal.Approvals = append(proposal.Approvals, payload.Approver)

	case journal.TypeWithdrawalExecuted:
		var payload journal.WithdrawalExecuted
		if err := entry.Decode(&payload); err != nil {
			return err
		}
		proposal, ok := l.proposals[payload.ID]
		if !ok {
			return fmt.Errorf("execution of unknown proposal %d", payload.ID)
		}
		proposal.Executed = true
		l.balance = payload.RemainingBalance

	case journal.TypeApproverAdded:
		var payload journal.ApproverAdded
		if err := entry.Decode(&payload); err != nil {
			return err
		}
		l.approvers = append(l.approvers, payload.Principal)

	case journal.TypeApproverRemoved:
		var payload journal.ApproverRemoved
		if err := entry.Decode(&payload); err != nil {
			return err
		}
		index := slices.Index(l.approvers, payload.Principal)
		if index < 0 {
			return fmt.Errorf("removal of %q, not on roster", payload.Principal)
		}
		l.approvers = slices.Delete(l.approvers, index, index+1)

	case journal.TypeConfigUpdated:
		var payload journal.ConfigUpdated
		if err := entry.Decode(&payload); err != nil {
			return err
		}
		l.minApprovals = payload.NewMinApprovals
		l.maxApprovers = payload.NewMaxApprovers

	case journal.TypeCapabilityTransferred:
		var payload journal.CapabilityTransferred
		if err := entry.Decode(&payload); err != nil {
			return err
		}
		l.capability.holder = payload.NewHolder

	default:
		return fmt.Errorf("unknown entry type %q", entry.Type)
	}
	return nil
}
