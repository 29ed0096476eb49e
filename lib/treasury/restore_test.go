// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package treasury

import (
	"errors"
	"slices"
	"testing"
)

func TestRestore(t *testing.T) {
	ledger, capability, jnl := newTestLedger(t)

	// A workload touching every mutation the journal records.
	if err := ledger.Deposit(dave, 1000); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := ledger.ReleaseViaCapability(capability, 100, erin); err != nil {
		t.Fatalf("ReleaseViaCapability: %v", err)
	}
	if err := ledger.TransferCapability(capability, bob); err != nil {
		t.Fatalf("TransferCapability: %v", err)
	}
	executed, err := ledger.ProposeWithdrawal(alice, erin, 200, "server rent")
	if err != nil {
		t.Fatalf("ProposeWithdrawal: %v", err)
	}
	if err := ledger.ApproveWithdrawal(carol, executed); err != nil {
		t.Fatalf("ApproveWithdrawal: %v", err)
	}
	if err := ledger.ExecuteWithdrawal(bob, executed); err != nil {
		t.Fatalf("ExecuteWithdrawal: %v", err)
	}
	open, err := ledger.ProposeWithdrawal(bob, dave, 50, "")
	if err != nil {
		t.Fatalf("ProposeWithdrawal: %v", err)
	}
	if err := ledger.AddApprover(alice, dave); err != nil {
		t.Fatalf("AddApprover: %v", err)
	}
	if err := ledger.RemoveApprover(carol, alice); err != nil {
		t.Fatalf("RemoveApprover: %v", err)
	}
	if err := ledger.UpdateConfig(alice, 3, 4); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	restored, restoredCapability, err := Restore(jnl, nil, jnl.ReadFrom(1))
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if restored.ID() != ledger.ID() {
		t.Errorf("restored ledger ID = %q, want %q", restored.ID(), ledger.ID())
	}
	if restoredCapability.ID() != capability.ID() {
		t.Errorf("restored capability ID = %q, want %q", restoredCapability.ID(), capability.ID())
	}
	if got := restoredCapability.Holder(); got != bob {
		t.Errorf("restored capability holder = %v, want %v", got, bob)
	}
	if got, want := restored.Balance(), ledger.Balance(); got != want {
		t.Errorf("restored balance = %d, want %d", got, want)
	}
	if got, want := restored.Approvers(), ledger.Approvers(); !slices.Equal(got, want) {
		t.Errorf("restored roster = %v, want %v", got, want)
	}
	if got := restored.MinApprovals(); got != 3 {
		t.Errorf("restored MinApprovals = %d, want 3", got)
	}
	if got := restored.MaxApprovers(); got != 4 {
		t.Errorf("restored MaxApprovers = %d, want 4", got)
	}
	if got, want := restored.NextProposalID(), ledger.NextProposalID(); got != want {
		t.Errorf("restored NextProposalID = %d, want %d", got, want)
	}

	executedProposal, err := restored.Proposal(executed)
	if err != nil {
		t.Fatalf("Proposal(%d): %v", executed, err)
	}
	if !executedProposal.Executed {
		t.Error("executed proposal not marked executed after restore")
	}
	if len(executedProposal.Approvals) != 2 {
		t.Errorf("executed proposal has %d approvals, want 2", len(executedProposal.Approvals))
	}
	openProposal, err := restored.Proposal(open)
	if err != nil {
		t.Fatalf("Proposal(%d): %v", open, err)
	}
	if openProposal.Executed {
		t.Error("open proposal marked executed after restore")
	}
	if openProposal.Reason != "" || openProposal.Amount != 50 {
		t.Errorf("open proposal = %+v, want amount 50 with empty reason", openProposal)
	}

	// The restored ledger keeps operating where the old one stopped.
	if err := restored.Deposit(dave, 5); err != nil {
		t.Fatalf("Deposit after restore: %v", err)
	}
	if err := restored.ReleaseViaCapability(restoredCapability, 5, erin); err != nil {
		t.Fatalf("ReleaseViaCapability after restore: %v", err)
	}
	next, err := restored.ProposeWithdrawal(bob, erin, 1, "")
	if err != nil {
		t.Fatalf("ProposeWithdrawal after restore: %v", err)
	}
	if next != open+1 {
		t.Errorf("next proposal ID after restore = %d, want %d", next, open+1)
	}

	// Handles from the pre-restore ledger are foreign to the new one.
	if err := restored.ReleaseViaCapability(capability, 1, erin); !errors.Is(err, ErrInvalidCapability) {
		t.Errorf("stale handle: got %v, want ErrInvalidCapability", err)
	}
}

func TestRestoreValidation(t *testing.T) {
	jnl := testJournal()
	if _, _, err := Restore(jnl, nil, jnl.ReadFrom(1)); err == nil {
		t.Error("Restore of empty journal succeeded")
	}

	// A journal whose first entry is not the genesis record is not a
	// ledger journal.
	if _, err := jnl.Append("something_else", struct{}{}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, _, err := Restore(jnl, nil, jnl.ReadFrom(1)); err == nil {
		t.Error("Restore without genesis entry succeeded")
	}
}
