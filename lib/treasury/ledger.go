// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package treasury

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/custodia-foundation/custodia/lib/journal"
	"github.com/custodia-foundation/custodia/lib/ref"
)

const (
	// DefaultMinApprovals is the genesis quorum.
	DefaultMinApprovals = 1

	// DefaultMaxApprovers is the genesis roster capacity.
	DefaultMaxApprovers = 5

	// DefaultMaxReasonLength bounds proposal reason text.
	DefaultMaxReasonLength = 256
)

// Config holds the parameters for creating a ledger at genesis.
type Config struct {
	// Journal receives an entry for every successful mutation.
	// Required.
	Journal journal.Journal

	// InitialHolder is the principal issued the ledger's single
	// access capability. Required.
	InitialHolder ref.Principal

	// Approvers seeds the roster. Later roster changes go through
	// AddApprover/RemoveApprover under the RosterPolicy; the seed
	// bypasses the policy (there is no roster yet to authorize
	// against) and is journaled with InitialHolder as the actor.
	Approvers []ref.Principal

	// MinApprovals is the quorum. Zero means DefaultMinApprovals.
	MinApprovals int

	// MaxApprovers is the roster capacity. Zero means
	// DefaultMaxApprovers.
	MaxApprovers int

	// MaxReasonLength bounds proposal reason text. Zero means
	// DefaultMaxReasonLength.
	MaxReasonLength int

	// Policy authorizes roster and quorum changes. Nil means
	// SelfGoverningPolicy{}.
	Policy RosterPolicy
}

// Ledger is the shared balance-holding aggregate: pooled funds, the
// approver roster, the quorum configuration, and the withdrawal
// proposal table. All custody operations live here.
//
// A Ledger is created once by [Initialize] and lives for the
// deployment's lifetime. All methods are safe for concurrent use;
// each operation runs to completion under a single mutex (see the
// package documentation for the atomicity contract).
type Ledger struct {
	mutex sync.Mutex

	id      string
	journal journal.Journal
	policy  RosterPolicy

	balance         uint64
	approvers       []ref.Principal
	minApprovals    int
	maxApprovers    int
	maxReasonLength int

	proposals      map[uint64]*Proposal
	nextProposalID uint64

	capability *Capability
}

// Initialize creates a ledger and its single access capability,
// issued to cfg.InitialHolder. The capability returned here is the
// only one that will ever exist for this ledger.
func Initialize(cfg Config) (*Ledger, *Capability, error) {
	if cfg.Journal == nil {
		return nil, nil, fmt.Errorf("treasury: Journal is required")
	}
	if cfg.InitialHolder.IsZero() {
		return nil, nil, fmt.Errorf("treasury: InitialHolder is required")
	}

	minApprovals := cfg.MinApprovals
	if minApprovals == 0 {
		minApprovals = DefaultMinApprovals
	}
	if minApprovals < 0 {
		return nil, nil, fmt.Errorf("%w: quorum must be >= 0", ErrInvalidConfig)
	}
	maxApprovers := cfg.MaxApprovers
	if maxApprovers == 0 {
		maxApprovers = DefaultMaxApprovers
	}
	if minApprovals > maxApprovers {
		return nil, nil, fmt.Errorf("%w: quorum %d exceeds roster capacity %d", ErrInvalidConfig, minApprovals, maxApprovers)
	}
	if len(cfg.Approvers) > maxApprovers {
		return nil, nil, fmt.Errorf("%w: %d seed approvers exceed roster capacity %d", ErrInvalidConfig, len(cfg.Approvers), maxApprovers)
	}
	if len(cfg.Approvers) > 0 && minApprovals > len(cfg.Approvers) {
		return nil, nil, fmt.Errorf("%w: quorum %d exceeds seed roster size %d", ErrInvalidConfig, minApprovals, len(cfg.Approvers))
	}
	maxReasonLength := cfg.MaxReasonLength
	if maxReasonLength == 0 {
		maxReasonLength = DefaultMaxReasonLength
	}
	policy := cfg.Policy
	if policy == nil {
		policy = SelfGoverningPolicy{}
	}

	for i, approver := range cfg.Approvers {
		if approver.IsZero() {
			return nil, nil, fmt.Errorf("treasury: seed approver %d: %w", i, ErrInvalidPrincipal)
		}
		if slices.Contains(cfg.Approvers[:i], approver) {
			return nil, nil, fmt.Errorf("%w: duplicate seed approver %q", ErrInvalidConfig, approver)
		}
	}

	ledgerID, err := randomID()
	if err != nil {
		return nil, nil, fmt.Errorf("treasury: generating ledger id: %w", err)
	}

	ledger := &Ledger{
		id:              ledgerID,
		journal:         cfg.Journal,
		policy:          policy,
		approvers:       slices.Clone(cfg.Approvers),
		minApprovals:    minApprovals,
		maxApprovers:    maxApprovers,
		maxReasonLength: maxReasonLength,
		proposals:       make(map[uint64]*Proposal),
	}

	capability, err := newCapability(ledger, cfg.InitialHolder)
	if err != nil {
		return nil, nil, err
	}
	ledger.capability = capability

	records := []journal.Record{{
		Type: journal.TypeLedgerInitialized,
		Payload: journal.LedgerInitialized{
			LedgerID:        ledgerID,
			CapabilityID:    capability.id,
			InitialHolder:   cfg.InitialHolder,
			MinApprovals:    minApprovals,
			MaxApprovers:    maxApprovers,
			MaxReasonLength: maxReasonLength,
		},
	}}
	for i, approver := range ledger.approvers {
		records = append(records, journal.Record{
			Type: journal.TypeApproverAdded,
			Payload: journal.ApproverAdded{
				Principal: approver,
				Actor:     cfg.InitialHolder,
				NewCount:  i + 1,
			},
		})
	}
	if _, err := ledger.journal.AppendAll(records); err != nil {
		return nil, nil, err
	}

	return ledger, capability, nil
}

// ID returns the ledger's random identifier, used to bind wire
// capability tokens (lib/capability) to this ledger instance.
func (l *Ledger) ID() string { return l.id }

// Deposit adds funds to the pooled balance. Callable by any
// principal; no authorization required.
func (l *Ledger) Deposit(depositor ref.Principal, amount uint64) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if depositor.IsZero() {
		return ErrInvalidPrincipal
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if l.balance > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}

	newBalance := l.balance + amount
	if _, err := l.journal.Append(journal.TypeFundsDeposited, journal.FundsDeposited{
		Depositor:  depositor,
		Amount:     amount,
		NewBalance: newBalance,
	}); err != nil {
		return err
	}
	l.balance = newBalance
	return nil
}

// ReleaseViaCapability debits the ledger and transfers funds to the
// recipient. The sole authorization is the capability handle itself:
// it must be the one this ledger issued. This is the path the
// external governance subsystem uses — it never touches the
// multi-party machinery.
func (l *Ledger) ReleaseViaCapability(capability *Capability, amount uint64, recipient ref.Principal) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if capability == nil || capability.issuer != l {
		return ErrInvalidCapability
	}
	if recipient.IsZero() {
		return ErrInvalidPrincipal
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if amount > l.balance {
		return ErrInsufficientFunds
	}

	remaining := l.balance - amount
	if _, err := l.journal.Append(journal.TypeFundsWithdrawnByGovernance, journal.FundsWithdrawnByGovernance{
		Recipient:        recipient,
		Amount:           amount,
		RemainingBalance: remaining,
	}); err != nil {
		return err
	}
	l.balance = remaining
	return nil
}

// TransferCapability atomically records a new holder for the ledger's
// capability. The handle itself is unchanged — possession still
// authorizes — but the journal and Holder reflect the new owner.
// Exactly one holder exists at all times.
func (l *Ledger) TransferCapability(capability *Capability, newHolder ref.Principal) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if capability == nil || capability.issuer != l {
		return ErrInvalidCapability
	}
	if newHolder.IsZero() {
		return ErrInvalidPrincipal
	}

	previous := capability.holder
	if _, err := l.journal.Append(journal.TypeCapabilityTransferred, journal.CapabilityTransferred{
		PreviousHolder: previous,
		NewHolder:      newHolder,
	}); err != nil {
		return err
	}
	capability.holder = newHolder
	return nil
}

// ProposeWithdrawal opens a multi-party withdrawal proposal and
// returns its ID. The proposer must be on the roster and is counted
// as the first approval.
//
// The requested amount is deliberately not checked against the
// balance here — the treasury may be funded between proposal and
// execution. Sufficiency is enforced by ExecuteWithdrawal.
func (l *Ledger) ProposeWithdrawal(proposer, recipient ref.Principal, amount uint64, reason string) (uint64, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !slices.Contains(l.approvers, proposer) {
		return 0, ErrNotAnApprover
	}
	if recipient.IsZero() {
		return 0, ErrInvalidPrincipal
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	if len(reason) > l.maxReasonLength {
		return 0, fmt.Errorf("%w: %d bytes, limit %d", ErrReasonTooLong, len(reason), l.maxReasonLength)
	}

	id := l.nextProposalID
	// One batch: a proposal entry followed by the proposer's
	// automatic approval. Committed atomically so a journal failure
	// cannot record the proposal without its first approval.
	if _, err := l.journal.AppendAll([]journal.Record{
		{
			Type: journal.TypeWithdrawalProposed,
			Payload: journal.WithdrawalProposed{
				ID:        id,
				Proposer:  proposer,
				Recipient: recipient,
				Amount:    amount,
				Reason:    reason,
			},
		},
		{
			Type: journal.TypeWithdrawalApproved,
			Payload: journal.WithdrawalApproved{
				ID:                id,
				Approver:          proposer,
				CurrentApprovals:  1,
				RequiredApprovals: l.minApprovals,
			},
		},
	}); err != nil {
		return 0, err
	}

	l.proposals[id] = &Proposal{
		ID:        id,
		Proposer:  proposer,
		Recipient: recipient,
		Amount:    amount,
		Reason:    reason,
		Approvals: []ref.Principal{proposer},
	}
	l.nextProposalID++
	return id, nil
}

// ApproveWithdrawal adds the approver's approval to an open proposal.
func (l *Ledger) ApproveWithdrawal(approver ref.Principal, proposalID uint64) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	proposal, ok := l.proposals[proposalID]
	if !ok {
		return ErrProposalNotFound
	}
	if !slices.Contains(l.approvers, approver) {
		return ErrNotAnApprover
	}
	if proposal.Executed {
		return ErrAlreadyExecuted
	}
	if proposal.HasApproved(approver) {
		return ErrAlreadyApproved
	}

	if _, err := l.journal.Append(journal.TypeWithdrawalApproved, journal.WithdrawalApproved{
		ID:                proposalID,
		Approver:          approver,
		CurrentApprovals:  len(proposal.Approvals) + 1,
		RequiredApprovals: l.minApprovals,
	}); err != nil {
		return err
	}
	proposal.Approvals = append(proposal.Approvals, approver)
	return nil
}

// ExecuteWithdrawal carries out a proposal whose approvals meet the
// quorum: marks it executed, debits the balance, and transfers the
// funds to the proposal's recipient.
//
// Callable by any principal, roster member or not. Execution is a
// mechanical consequence of quorum having been reached — the
// authorization happened approval by approval. The executor is
// recorded in the journal for attribution only.
func (l *Ledger) ExecuteWithdrawal(executor ref.Principal, proposalID uint64) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if executor.IsZero() {
		return ErrInvalidPrincipal
	}
	proposal, ok := l.proposals[proposalID]
	if !ok {
		return ErrProposalNotFound
	}
	if proposal.Executed {
		return ErrAlreadyExecuted
	}
	if len(proposal.Approvals) < l.minApprovals {
		return fmt.Errorf("%w: have %d, need %d", ErrNotEnoughApprovals, len(proposal.Approvals), l.minApprovals)
	}
	if proposal.Amount > l.balance {
		return ErrInsufficientFunds
	}

	remaining := l.balance - proposal.Amount
	if _, err := l.journal.Append(journal.TypeWithdrawalExecuted, journal.WithdrawalExecuted{
		ID:               proposalID,
		Executor:         executor,
		Recipient:        proposal.Recipient,
		Amount:           proposal.Amount,
		RemainingBalance: remaining,
	}); err != nil {
		return err
	}
	proposal.Executed = true
	l.balance = remaining
	return nil
}

// AddApprover adds a principal to the roster. Authorization is
// delegated to the configured RosterPolicy.
func (l *Ledger) AddApprover(actor, newApprover ref.Principal) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if newApprover.IsZero() {
		return ErrInvalidPrincipal
	}
	if err := l.policy.AuthorizeRosterChange(actor, slices.Clone(l.approvers)); err != nil {
		return err
	}
	if len(l.approvers) == l.maxApprovers {
		return ErrApproverListFull
	}
	if slices.Contains(l.approvers, newApprover) {
		return ErrApproverExists
	}

	if _, err := l.journal.Append(journal.TypeApproverAdded, journal.ApproverAdded{
		Principal: newApprover,
		Actor:     actor,
		NewCount:  len(l.approvers) + 1,
	}); err != nil {
		return err
	}
	l.approvers = append(l.approvers, newApprover)
	return nil
}

// RemoveApprover removes a principal from the roster. Refused when
// the removal would leave fewer approvers than the quorum requires.
//
// The removed principal's approvals on open proposals are NOT
// withdrawn; they continue to count toward quorum.
func (l *Ledger) RemoveApprover(actor, approver ref.Principal) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if err := l.policy.AuthorizeRosterChange(actor, slices.Clone(l.approvers)); err != nil {
		return err
	}
	index := slices.Index(l.approvers, approver)
	if index < 0 {
		return ErrApproverNotFound
	}
	if len(l.approvers)-1 < l.minApprovals {
		return fmt.Errorf("%w: removal would leave %d approvers below quorum %d", ErrInvalidConfig, len(l.approvers)-1, l.minApprovals)
	}

	if _, err := l.journal.Append(journal.TypeApproverRemoved, journal.ApproverRemoved{
		Principal: approver,
		Actor:     actor,
		NewCount:  len(l.approvers) - 1,
	}); err != nil {
		return err
	}
	l.approvers = slices.Delete(l.approvers, index, index+1)
	return nil
}

// UpdateConfig changes the quorum and roster capacity. Authorization
// is delegated to the configured RosterPolicy.
func (l *Ledger) UpdateConfig(actor ref.Principal, newMinApprovals, newMaxApprovers int) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if err := l.policy.AuthorizeConfigUpdate(actor, slices.Clone(l.approvers)); err != nil {
		return err
	}
	if newMinApprovals < 0 {
		return fmt.Errorf("%w: quorum must be >= 0", ErrInvalidConfig)
	}
	if newMinApprovals > len(l.approvers) {
		return fmt.Errorf("%w: quorum %d exceeds roster size %d", ErrInvalidConfig, newMinApprovals, len(l.approvers))
	}
	if newMinApprovals > newMaxApprovers {
		return fmt.Errorf("%w: quorum %d exceeds roster capacity %d", ErrInvalidConfig, newMinApprovals, newMaxApprovers)
	}
	if len(l.approvers) > newMaxApprovers {
		return fmt.Errorf("%w: roster capacity %d below current roster size %d", ErrInvalidConfig, newMaxApprovers, len(l.approvers))
	}

	if _, err := l.journal.Append(journal.TypeConfigUpdated, journal.ConfigUpdated{
		Actor:           actor,
		NewMinApprovals: newMinApprovals,
		NewMaxApprovers: newMaxApprovers,
	}); err != nil {
		return err
	}
	l.minApprovals = newMinApprovals
	l.maxApprovers = newMaxApprovers
	return nil
}

// Balance returns the current pooled balance.
func (l *Ledger) Balance() uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.balance
}

// Approvers returns a copy of the roster in insertion order.
func (l *Ledger) Approvers() []ref.Principal {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return slices.Clone(l.approvers)
}

// IsApprover reports whether the principal is on the roster.
func (l *Ledger) IsApprover(principal ref.Principal) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return slices.Contains(l.approvers, principal)
}

// MinApprovals returns the quorum.
func (l *Ledger) MinApprovals() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.minApprovals
}

// MaxApprovers returns the roster capacity.
func (l *Ledger) MaxApprovers() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.maxApprovers
}

// Proposal returns a snapshot of the proposal with the given ID.
func (l *Ledger) Proposal(proposalID uint64) (Proposal, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	proposal, ok := l.proposals[proposalID]
	if !ok {
		return Proposal{}, ErrProposalNotFound
	}
	return proposal.snapshot(), nil
}

// Proposals returns snapshots of all proposals, ordered by ID.
func (l *Ledger) Proposals() []Proposal {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	result := make([]Proposal, 0, len(l.proposals))
	for id := uint64(0); id < l.nextProposalID; id++ {
		if proposal, ok := l.proposals[id]; ok {
			result = append(result, proposal.snapshot())
		}
	}
	return result
}

// NextProposalID returns the ID the next proposal will receive.
func (l *Ledger) NextProposalID() uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.nextProposalID
}
