// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package treasury

import "errors"

// Errors returned by ledger operations. Every error aborts its
// operation atomically: no partial debit, no partial approval, no
// journal entry. Callers match with errors.Is; the engine never
// retries on their behalf.
var (
	// ErrInvalidAmount is returned when an amount is zero. Deposits,
	// capability releases, and proposals all require a positive
	// amount.
	ErrInvalidAmount = errors.New("treasury: amount must be positive")

	// ErrBalanceOverflow is returned when a deposit would overflow
	// the balance counter.
	ErrBalanceOverflow = errors.New("treasury: deposit would overflow balance")

	// ErrInsufficientFunds is returned when a release exceeds the
	// current balance. Proposals are not checked against the balance
	// at proposal time — only execution is.
	ErrInsufficientFunds = errors.New("treasury: insufficient funds")

	// ErrInvalidCapability is returned when the presented capability
	// was not issued by this ledger (including a nil capability).
	ErrInvalidCapability = errors.New("treasury: capability not issued by this ledger")

	// ErrNotAnApprover is returned when an operation restricted to
	// roster members is attempted by anyone else.
	ErrNotAnApprover = errors.New("treasury: caller is not an approver")

	// ErrProposalNotFound is returned for an unknown proposal ID.
	// Proposal IDs are never reused, so an unknown ID was never
	// allocated rather than deleted.
	ErrProposalNotFound = errors.New("treasury: proposal not found")

	// ErrAlreadyExecuted is returned when approving or executing a
	// proposal that has already executed. Executed is terminal.
	ErrAlreadyExecuted = errors.New("treasury: proposal already executed")

	// ErrAlreadyApproved is returned when an approver approves the
	// same proposal twice.
	ErrAlreadyApproved = errors.New("treasury: already approved this proposal")

	// ErrNotEnoughApprovals is returned when executing a proposal
	// whose approval count is below the quorum.
	ErrNotEnoughApprovals = errors.New("treasury: not enough approvals")

	// ErrApproverListFull is returned when adding an approver to a
	// roster already at its configured capacity.
	ErrApproverListFull = errors.New("treasury: approver roster is full")

	// ErrApproverExists is returned when adding a principal already
	// on the roster.
	ErrApproverExists = errors.New("treasury: approver already on the roster")

	// ErrApproverNotFound is returned when removing a principal that
	// is not on the roster.
	ErrApproverNotFound = errors.New("treasury: approver not on the roster")

	// ErrInvalidConfig is returned when a quorum or roster change
	// would violate the configuration arithmetic: quorum above
	// roster size, quorum above capacity, capacity below roster
	// size, or a removal that would push the roster below quorum.
	ErrInvalidConfig = errors.New("treasury: invalid quorum configuration")

	// ErrInvalidPrincipal is returned when a required principal
	// (depositor, recipient, proposer, ...) is the zero value.
	ErrInvalidPrincipal = errors.New("treasury: principal is required")

	// ErrReasonTooLong is returned when a proposal reason exceeds
	// the configured bound.
	ErrReasonTooLong = errors.New("treasury: reason exceeds maximum length")
)
