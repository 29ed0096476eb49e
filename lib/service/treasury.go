// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/custodia-foundation/custodia/lib/capability"
	"github.com/custodia-foundation/custodia/lib/clock"
	"github.com/custodia-foundation/custodia/lib/codec"
	"github.com/custodia-foundation/custodia/lib/journal"
	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/treasury"
)

// JournalReader is the read side of the journal exposed over the
// socket. *journal.Store satisfies it.
type JournalReader interface {
	ReadFrom(ctx context.Context, seq uint64) ([]journal.Entry, error)
	Len() uint64
}

// TreasuryConfig assembles a Treasury handler set.
type TreasuryConfig struct {
	// Ledger is the custody aggregate. Required.
	Ledger *treasury.Ledger

	// Capability is the ledger's access capability handle. The
	// service holds it on behalf of the remote holder named in
	// capability tokens. Required.
	Capability *treasury.Capability

	// Journal is the read side of the audit log. Required.
	Journal JournalReader

	// SigningPublic and SigningPrivate are the Ed25519 keypair for
	// capability tokens. Required.
	SigningPublic  ed25519.PublicKey
	SigningPrivate ed25519.PrivateKey

	// TokenTTL is the lifetime of minted capability tokens.
	TokenTTL time.Duration

	// Clock drives token expiry checks. Nil means the real clock.
	Clock clock.Clock

	// Logger receives per-operation logs. Nil discards.
	Logger *slog.Logger
}

// Treasury binds ledger operations to socket actions. Create with
// NewTreasury, then attach to a server with Register.
type Treasury struct {
	ledger     *treasury.Ledger
	capability *treasury.Capability
	journal    JournalReader
	public     ed25519.PublicKey
	private    ed25519.PrivateKey
	tokenTTL   time.Duration
	clk        clock.Clock
	logger     *slog.Logger
}

// NewTreasury validates cfg and builds the handler set.
func NewTreasury(cfg TreasuryConfig) (*Treasury, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("service: Ledger is required")
	}
	if cfg.Capability == nil {
		return nil, errors.New("service: Capability is required")
	}
	if cfg.Journal == nil {
		return nil, errors.New("service: Journal is required")
	}
	if len(cfg.SigningPublic) != ed25519.PublicKeySize || len(cfg.SigningPrivate) != ed25519.PrivateKeySize {
		return nil, errors.New("service: signing keypair is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 5 * time.Minute
	}
	return &Treasury{
		ledger:     cfg.Ledger,
		capability: cfg.Capability,
		journal:    cfg.Journal,
		public:     cfg.SigningPublic,
		private:    cfg.SigningPrivate,
		tokenTTL:   tokenTTL,
		clk:        clk,
		logger:     logger,
	}, nil
}

// Register attaches all treasury actions to the server.
func (t *Treasury) Register(server *SocketServer) {
	server.Handle("ping", t.handlePing)
	server.Handle("status", t.handleStatus)
	server.Handle("deposit", t.handleDeposit)
	server.Handle("release", t.handleRelease)
	server.Handle("mint-token", t.handleMintToken)
	server.Handle("transfer-capability", t.handleTransferCapability)
	server.Handle("propose", t.handlePropose)
	server.Handle("approve", t.handleApprove)
	server.Handle("execute", t.handleExecute)
	server.Handle("proposal", t.handleProposal)
	server.Handle("proposals", t.handleProposals)
	server.Handle("approver-add", t.handleApproverAdd)
	server.Handle("approver-remove", t.handleApproverRemove)
	server.Handle("config-update", t.handleConfigUpdate)
	server.Handle("journal", t.handleJournal)
}

// StatusResult is the response payload of the "status" action.
type StatusResult struct {
	LedgerID       string          `cbor:"ledger_id"`
	Balance        uint64          `cbor:"balance"`
	Approvers      []ref.Principal `cbor:"approvers"`
	MinApprovals   int             `cbor:"min_approvals"`
	MaxApprovers   int             `cbor:"max_approvers"`
	NextProposalID uint64          `cbor:"next_proposal_id"`
	Holder         ref.Principal   `cbor:"holder"`
	JournalLen     uint64          `cbor:"journal_len"`
}

func (t *Treasury) handlePing(ctx context.Context, raw []byte) (any, error) {
	return nil, nil
}

func (t *Treasury) handleStatus(ctx context.Context, raw []byte) (any, error) {
	return &StatusResult{
		LedgerID:       t.ledger.ID(),
		Balance:        t.ledger.Balance(),
		Approvers:      t.ledger.Approvers(),
		MinApprovals:   t.ledger.MinApprovals(),
		MaxApprovers:   t.ledger.MaxApprovers(),
		NextProposalID: t.ledger.NextProposalID(),
		Holder:         t.capability.Holder(),
		JournalLen:     t.journal.Len(),
	}, nil
}

func (t *Treasury) handleDeposit(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		Principal ref.Principal `cbor:"principal"`
		Amount    uint64        `cbor:"amount"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid deposit request: %w", err)
	}
	if err := t.ledger.Deposit(request.Principal, request.Amount); err != nil {
		return nil, err
	}
	t.logger.Info("deposit",
		"principal", request.Principal,
		"amount", request.Amount,
		"balance", t.ledger.Balance(),
	)
	return nil, nil
}

// verifyToken authenticates the capability token on a gated request
// and confirms it names the ledger's current holder. A token minted
// before a capability transfer fails the holder check even inside its
// TTL.
func (t *Treasury) verifyToken(tokenBytes []byte) (*capability.Token, error) {
	if len(tokenBytes) == 0 {
		return nil, errors.New("capability token required")
	}
	token, err := capability.VerifyForLedgerAt(t.public, tokenBytes, t.ledger.ID(), t.clk.Now())
	if err != nil {
		return nil, err
	}
	if holder := t.capability.Holder(); token.Holder != holder {
		return nil, fmt.Errorf("capability token holder %q is not the current holder", token.Holder)
	}
	return token, nil
}

// mintToken issues a fresh capability token for the current holder.
func (t *Treasury) mintToken() ([]byte, error) {
	id, err := capability.NewTokenID()
	if err != nil {
		return nil, err
	}
	now := t.clk.Now()
	return capability.Mint(t.private, &capability.Token{
		Holder:       t.capability.Holder(),
		LedgerID:     t.ledger.ID(),
		CapabilityID: t.capability.ID(),
		ID:           id,
		IssuedAt:     now.Unix(),
		ExpiresAt:    now.Add(t.tokenTTL).Unix(),
	})
}

// WriteBootToken mints a token for the current capability holder and
// writes it to path with owner-only permissions. The daemon calls this
// once per boot: token refresh requires presenting a live token, so a
// fresh boot (or a restart after every token expired) needs one minted
// out of band.
func (t *Treasury) WriteBootToken(path string) error {
	minted, err := t.mintToken()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, minted, 0600); err != nil {
		return fmt.Errorf("writing boot token %s: %w", path, err)
	}
	return nil
}

func (t *Treasury) handleRelease(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		Token     []byte        `cbor:"token"`
		Recipient ref.Principal `cbor:"recipient"`
		Amount    uint64        `cbor:"amount"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid release request: %w", err)
	}
	token, err := t.verifyToken(request.Token)
	if err != nil {
		return nil, err
	}
	if err := t.ledger.ReleaseViaCapability(t.capability, request.Amount, request.Recipient); err != nil {
		return nil, err
	}
	t.logger.Info("governance release",
		"holder", token.Holder,
		"token_id", token.ID,
		"recipient", request.Recipient,
		"amount", request.Amount,
		"balance", t.ledger.Balance(),
	)
	return nil, nil
}

// TokenResult is the response payload of "mint-token" and
// "transfer-capability".
type TokenResult struct {
	Token []byte `cbor:"token"`
}

// handleMintToken re-issues a token for the current holder. The
// request must itself prove possession of a valid token; the holder
// uses this to refresh before expiry.
func (t *Treasury) handleMintToken(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		Token []byte `cbor:"token"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid mint-token request: %w", err)
	}
	if _, err := t.verifyToken(request.Token); err != nil {
		return nil, err
	}
	minted, err := t.mintToken()
	if err != nil {
		return nil, err
	}
	return &TokenResult{Token: minted}, nil
}

func (t *Treasury) handleTransferCapability(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		Token     []byte        `cbor:"token"`
		NewHolder ref.Principal `cbor:"new_holder"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid transfer request: %w", err)
	}
	token, err := t.verifyToken(request.Token)
	if err != nil {
		return nil, err
	}
	if err := t.ledger.TransferCapability(t.capability, request.NewHolder); err != nil {
		return nil, err
	}
	t.logger.Info("capability transferred",
		"previous_holder", token.Holder,
		"new_holder", request.NewHolder,
	)
	// The presented token names the previous holder and is now
	// dead; hand the new holder a fresh one in the response.
	minted, err := t.mintToken()
	if err != nil {
		return nil, err
	}
	return &TokenResult{Token: minted}, nil
}

// ProposeResult is the response payload of the "propose" action.
type ProposeResult struct {
	ProposalID uint64 `cbor:"proposal_id"`
}

func (t *Treasury) handlePropose(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		Proposer  ref.Principal `cbor:"proposer"`
		Recipient ref.Principal `cbor:"recipient"`
		Amount    uint64        `cbor:"amount"`
		Reason    string        `cbor:"reason"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid propose request: %w", err)
	}
	id, err := t.ledger.ProposeWithdrawal(request.Proposer, request.Recipient, request.Amount, request.Reason)
	if err != nil {
		return nil, err
	}
	t.logger.Info("withdrawal proposed",
		"proposal_id", id,
		"proposer", request.Proposer,
		"recipient", request.Recipient,
		"amount", request.Amount,
	)
	return &ProposeResult{ProposalID: id}, nil
}

func (t *Treasury) handleApprove(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		Approver   ref.Principal `cbor:"approver"`
		ProposalID uint64        `cbor:"proposal_id"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid approve request: %w", err)
	}
	if err := t.ledger.ApproveWithdrawal(request.Approver, request.ProposalID); err != nil {
		return nil, err
	}
	t.logger.Info("withdrawal approved",
		"proposal_id", request.ProposalID,
		"approver", request.Approver,
	)
	return nil, nil
}

func (t *Treasury) handleExecute(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		Executor   ref.Principal `cbor:"executor"`
		ProposalID uint64        `cbor:"proposal_id"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid execute request: %w", err)
	}
	if err := t.ledger.ExecuteWithdrawal(request.Executor, request.ProposalID); err != nil {
		return nil, err
	}
	t.logger.Info("withdrawal executed",
		"proposal_id", request.ProposalID,
		"executor", request.Executor,
		"balance", t.ledger.Balance(),
	)
	return nil, nil
}

func (t *Treasury) handleProposal(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		ProposalID uint64 `cbor:"proposal_id"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid proposal request: %w", err)
	}
	proposal, err := t.ledger.Proposal(request.ProposalID)
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

// ProposalsResult is the response payload of the "proposals" action.
type ProposalsResult struct {
	Proposals []treasury.Proposal `cbor:"proposals"`
}

func (t *Treasury) handleProposals(ctx context.Context, raw []byte) (any, error) {
	return &ProposalsResult{Proposals: t.ledger.Proposals()}, nil
}

func (t *Treasury) handleApproverAdd(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		Actor     ref.Principal `cbor:"actor"`
		Principal ref.Principal `cbor:"principal"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid approver-add request: %w", err)
	}
	if err := t.ledger.AddApprover(request.Actor, request.Principal); err != nil {
		return nil, err
	}
	t.logger.Info("approver added",
		"principal", request.Principal,
		"actor", request.Actor,
	)
	return nil, nil
}

func (t *Treasury) handleApproverRemove(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		Actor     ref.Principal `cbor:"actor"`
		Principal ref.Principal `cbor:"principal"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid approver-remove request: %w", err)
	}
	if err := t.ledger.RemoveApprover(request.Actor, request.Principal); err != nil {
		return nil, err
	}
	t.logger.Info("approver removed",
		"principal", request.Principal,
		"actor", request.Actor,
	)
	return nil, nil
}

func (t *Treasury) handleConfigUpdate(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		Actor        ref.Principal `cbor:"actor"`
		MinApprovals int           `cbor:"min_approvals"`
		MaxApprovers int           `cbor:"max_approvers"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid config-update request: %w", err)
	}
	if err := t.ledger.UpdateConfig(request.Actor, request.MinApprovals, request.MaxApprovers); err != nil {
		return nil, err
	}
	t.logger.Info("config updated",
		"actor", request.Actor,
		"min_approvals", request.MinApprovals,
		"max_approvers", request.MaxApprovers,
	)
	return nil, nil
}

// JournalResult is the response payload of the "journal" action.
type JournalResult struct {
	Entries []journal.Entry `cbor:"entries"`
}

func (t *Treasury) handleJournal(ctx context.Context, raw []byte) (any, error) {
	var request struct {
		From uint64 `cbor:"from"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid journal request: %w", err)
	}
	from := request.From
	if from == 0 {
		from = 1
	}
	entries, err := t.journal.ReadFrom(ctx, from)
	if err != nil {
		return nil, err
	}
	return &JournalResult{Entries: entries}, nil
}
