// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/custodia-foundation/custodia/lib/codec"
	"github.com/custodia-foundation/custodia/lib/ref"
)

// Entry type names. The string is the stable wire identifier — it
// appears in persisted rows, snapshots, and CLI output, so renaming
// one is a breaking change to every consumer of the log.
const (
	TypeLedgerInitialized          = "ledger_initialized"
	TypeFundsDeposited             = "funds_deposited"
	TypeFundsWithdrawnByGovernance = "funds_withdrawn_by_governance"
	TypeWithdrawalProposed         = "withdrawal_proposed"
	TypeWithdrawalApproved         = "withdrawal_approved"
	TypeWithdrawalExecuted         = "withdrawal_executed"
	TypeApproverAdded              = "approver_added"
	TypeApproverRemoved            = "approver_removed"
	TypeConfigUpdated              = "config_updated"
	TypeCapabilityTransferred      = "capability_transferred"
)

// LedgerInitialized is the first entry of every journal. It records
// the identity and starting configuration of the ledger, which lets a
// restarted process rebuild ledger state by replaying the journal.
type LedgerInitialized struct {
	// LedgerID is the ledger's random identifier. Wire capability
	// tokens are bound to it, so it must survive restarts.
	LedgerID string `json:"ledger_id"`

	// CapabilityID identifies the ledger's single access capability.
	CapabilityID string `json:"capability_id"`

	// InitialHolder is the principal the capability was issued to.
	InitialHolder ref.Principal `json:"initial_holder"`

	// MinApprovals is the starting withdrawal quorum.
	MinApprovals int `json:"min_approvals"`

	// MaxApprovers is the starting roster capacity.
	MaxApprovers int `json:"max_approvers"`

	// MaxReasonLength is the proposal reason bound, in bytes.
	MaxReasonLength int `json:"max_reason_length"`
}

// FundsDeposited records an unconditional deposit into the ledger.
type FundsDeposited struct {
	// Depositor is who pushed the funds. Deposits require no
	// authorization, so this is self-reported by the caller.
	Depositor ref.Principal `json:"depositor"`

	// Amount is the deposited amount in the smallest fund unit.
	Amount uint64 `json:"amount"`

	// NewBalance is the ledger balance after the deposit.
	NewBalance uint64 `json:"new_balance"`
}

// FundsWithdrawnByGovernance records a release through the
// capability-gated path.
type FundsWithdrawnByGovernance struct {
	// Recipient received the funds.
	Recipient ref.Principal `json:"recipient"`

	// Amount is the released amount.
	Amount uint64 `json:"amount"`

	// RemainingBalance is the ledger balance after the release.
	RemainingBalance uint64 `json:"remaining_balance"`
}

// WithdrawalProposed records the opening of a multi-party withdrawal
// proposal. The proposer's automatic approval is journaled separately
// as a WithdrawalApproved entry.
type WithdrawalProposed struct {
	// ID is the proposal identifier, never reused.
	ID uint64 `json:"id"`

	// Proposer opened the proposal and counts as its first approval.
	Proposer ref.Principal `json:"proposer"`

	// Recipient will receive the funds if the proposal executes.
	Recipient ref.Principal `json:"recipient"`

	// Amount is the requested amount. Not checked against the
	// balance at proposal time — sufficiency is re-checked at
	// execution.
	Amount uint64 `json:"amount"`

	// Reason is the proposer's free-text justification.
	Reason string `json:"reason,omitempty"`
}

// WithdrawalApproved records one approver's approval of a proposal,
// including the proposer's automatic first approval.
type WithdrawalApproved struct {
	// ID is the proposal identifier.
	ID uint64 `json:"id"`

	// Approver added the approval.
	Approver ref.Principal `json:"approver"`

	// CurrentApprovals is the approval count after this approval.
	CurrentApprovals int `json:"current_approvals"`

	// RequiredApprovals is the quorum in force when the approval
	// landed. Recorded because the quorum is mutable — a later
	// config change does not rewrite history.
	RequiredApprovals int `json:"required_approvals"`
}

// WithdrawalExecuted records the execution of a quorum-satisfied
// proposal.
type WithdrawalExecuted struct {
	// ID is the proposal identifier.
	ID uint64 `json:"id"`

	// Executor triggered the execution. Execution is mechanical —
	// any principal may trigger it once quorum is met — so this is
	// attribution, not authorization.
	Executor ref.Principal `json:"executor"`

	// Recipient received the funds.
	Recipient ref.Principal `json:"recipient"`

	// Amount is the released amount.
	Amount uint64 `json:"amount"`

	// RemainingBalance is the ledger balance after execution.
	RemainingBalance uint64 `json:"remaining_balance"`
}

// ApproverAdded records a roster addition.
type ApproverAdded struct {
	// Principal joined the roster.
	Principal ref.Principal `json:"principal"`

	// Actor performed the addition.
	Actor ref.Principal `json:"actor"`

	// NewCount is the roster size after the addition.
	NewCount int `json:"new_count"`
}

// ApproverRemoved records a roster removal.
type ApproverRemoved struct {
	// Principal left the roster.
	Principal ref.Principal `json:"principal"`

	// Actor performed the removal.
	Actor ref.Principal `json:"actor"`

	// NewCount is the roster size after the removal.
	NewCount int `json:"new_count"`
}

// ConfigUpdated records a quorum configuration change.
type ConfigUpdated struct {
	// Actor performed the update.
	Actor ref.Principal `json:"actor"`

	// NewMinApprovals is the quorum after the update.
	NewMinApprovals int `json:"new_min_approvals"`

	// NewMaxApprovers is the roster capacity after the update.
	NewMaxApprovers int `json:"new_max_approvers"`
}

// CapabilityTransferred records a change of the access capability's
// holder. Exactly one holder exists at all times.
type CapabilityTransferred struct {
	// PreviousHolder held the capability before the transfer.
	PreviousHolder ref.Principal `json:"previous_holder"`

	// NewHolder holds the capability after the transfer.
	NewHolder ref.Principal `json:"new_holder"`
}

// Hash is a 32-byte BLAKE3 digest linking journal entries into a
// tamper-evident chain. Serialized as lowercase hex.
type Hash [32]byte

// IsZero reports whether the hash is all zeroes. The zero hash is the
// chain anchor: the first entry's PrevHash.
func (h Hash) IsZero() bool { return h == Hash{} }

// String returns the lowercase hex encoding.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h[:])), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(data []byte) error {
	decoded, err := hex.DecodeString(string(data))
	if err != nil {
		return fmt.Errorf("journal: invalid hash encoding: %w", err)
	}
	if len(decoded) != len(h) {
		return fmt.Errorf("journal: hash is %d bytes, want %d", len(decoded), len(h))
	}
	copy(h[:], decoded)
	return nil
}

// Entry is the envelope around one journal payload. Entries are
// immutable once appended.
type Entry struct {
	// Seq is the entry's position in the journal, monotonic from 1.
	Seq uint64 `json:"seq"`

	// Time is the RFC 3339 UTC timestamp of the mutation.
	Time string `json:"time"`

	// Type is one of the Type* constants.
	Type string `json:"type"`

	// Payload is the deterministic CBOR encoding of the typed
	// payload struct for Type.
	Payload codec.RawMessage `json:"payload"`

	// PrevHash is the Hash of the preceding entry, or the zero hash
	// for the first entry.
	PrevHash Hash `json:"prev_hash"`

	// Hash covers Seq, Time, Type, Payload, and PrevHash.
	Hash Hash `json:"hash"`
}

// Decode unmarshals the entry's payload into v, which should be a
// pointer to the payload struct matching the entry's Type.
func (e *Entry) Decode(v any) error {
	if err := codec.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("journal: decoding %s payload of entry %d: %w", e.Type, e.Seq, err)
	}
	return nil
}

// entryDomainKey is the BLAKE3 keyed-hash domain for journal entry
// hashes. Fixed constant — changing it invalidates every existing
// chain. ASCII encoding of the domain name, zero-padded to 32 bytes,
// so the key is inspectable in hex dumps.
var entryDomainKey = [32]byte{
	'c', 'u', 's', 't', 'o', 'd', 'i', 'a', '.', 'j', 'o', 'u', 'r', 'n', 'a', 'l',
	'.', 'e', 'n', 't', 'r', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// newEntry builds a chained entry: encodes the payload, stamps the
// time, and computes the hash over the envelope plus the previous
// entry's hash.
func newEntry(seq uint64, at time.Time, entryType string, payload any, prev Hash) (Entry, error) {
	encoded, err := codec.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: encoding %s payload: %w", entryType, err)
	}
	entry := Entry{
		Seq:      seq,
		Time:     at.UTC().Format(time.RFC3339Nano),
		Type:     entryType,
		Payload:  encoded,
		PrevHash: prev,
	}
	entry.Hash = entryHash(entry)
	return entry, nil
}

// entryHash computes the chain hash of an entry. The Hash field itself
// is excluded from the input.
func entryHash(entry Entry) Hash {
	hasher, err := blake3.NewKeyed(entryDomainKey[:])
	if err != nil {
		panic("journal: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], entry.Seq)
	hasher.Write(seq[:])
	hasher.Write([]byte(entry.Time))
	hasher.Write([]byte(entry.Type))
	hasher.Write(entry.Payload)
	hasher.Write(entry.PrevHash[:])

	var result Hash
	copy(result[:], hasher.Sum(nil))
	return result
}

// VerifyChain checks that entries form an unbroken hash chain starting
// from the given anchor (the zero hash for a journal read from its
// beginning). Returns an error naming the first entry whose sequence,
// linkage, or hash does not match.
func VerifyChain(entries []Entry, anchor Hash) error {
	prev := anchor
	var prevSeq uint64
	for i := range entries {
		entry := &entries[i]
		if prevSeq != 0 && entry.Seq != prevSeq+1 {
			return fmt.Errorf("journal: sequence gap: entry %d follows entry %d", entry.Seq, prevSeq)
		}
		if entry.PrevHash != prev {
			return fmt.Errorf("journal: entry %d prev_hash does not match preceding entry", entry.Seq)
		}
		if computed := entryHash(*entry); computed != entry.Hash {
			return fmt.Errorf("journal: entry %d hash mismatch: stored %s, computed %s", entry.Seq, entry.Hash, computed)
		}
		prev = entry.Hash
		prevSeq = entry.Seq
	}
	return nil
}
