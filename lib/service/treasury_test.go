// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/custodia-foundation/custodia/lib/capability"
	"github.com/custodia-foundation/custodia/lib/clock"
	"github.com/custodia-foundation/custodia/lib/journal"
	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/treasury"
)

// testClockEpoch is the fixed time used by the fake clock. Token
// timestamps are relative to this epoch.
var testClockEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	alice = ref.MustPrincipal("council/alice")
	bob   = ref.MustPrincipal("council/bob")
	erin  = ref.MustPrincipal("vendor/erin")
)

// memoryReader adapts journal.Memory to the JournalReader interface.
type memoryReader struct {
	memory *journal.Memory
}

func (r *memoryReader) ReadFrom(ctx context.Context, seq uint64) ([]journal.Entry, error) {
	return r.memory.ReadFrom(seq), nil
}

func (r *memoryReader) Len() uint64 {
	return uint64(r.memory.Len())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	for {
		// Probe with a real dial rather than os.Stat: the socket file
		// exists after bind() but before listen(), so a stat-based wait
		// can race with the server and produce ECONNREFUSED. The server
		// treats a connection that sends nothing as a no-op.
		if conn, err := net.Dial("unix", path); err == nil {
			conn.Close()
			return
		}
		if t.Context().Err() != nil {
			t.Fatalf("socket %s did not appear before test context expired", path)
		}
		runtime.Gosched()
	}
}

type testService struct {
	client     *Client
	ledger     *treasury.Ledger
	private    ed25519.PrivateKey
	treasury   *Treasury
	socketPath string
}

// startService boots a full treasury service on a temp socket:
// roster {alice, bob}, quorum 2, capability held by alice.
func startService(t *testing.T) *testService {
	t.Helper()

	jnl := journal.NewMemory(clock.NewFake(testClockEpoch))
	ledger, capabilityHandle, err := treasury.Initialize(treasury.Config{
		Journal:       jnl,
		InitialHolder: alice,
		Approvers:     []ref.Principal{alice, bob},
		MinApprovals:  2,
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	public, private, err := capability.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	handlers, err := NewTreasury(TreasuryConfig{
		Ledger:         ledger,
		Capability:     capabilityHandle,
		Journal:        &memoryReader{memory: jnl},
		SigningPublic:  public,
		SigningPrivate: private,
		TokenTTL:       5 * time.Minute,
		Clock:          clock.NewFake(testClockEpoch),
		Logger:         testLogger(),
	})
	if err != nil {
		t.Fatalf("NewTreasury: %v", err)
	}

	socketPath := filepath.Join(t.TempDir(), "treasury.sock")
	server := NewSocketServer(socketPath, testLogger())
	handlers.Register(server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(ctx); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	waitForSocket(t, socketPath)

	return &testService{
		client:     NewClient(socketPath),
		ledger:     ledger,
		private:    private,
		treasury:   handlers,
		socketPath: socketPath,
	}
}

// mintHolderToken signs a capability token for the service's ledger,
// valid around testClockEpoch.
func (s *testService) mintHolderToken(t *testing.T, holder ref.Principal) []byte {
	t.Helper()
	tokenBytes, err := capability.Mint(s.private, &capability.Token{
		Holder:       holder,
		LedgerID:     s.ledger.ID(),
		CapabilityID: s.treasury.capability.ID(),
		ID:           "test-token-id",
		IssuedAt:     testClockEpoch.Unix(),
		ExpiresAt:    testClockEpoch.Add(5 * time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return tokenBytes
}

func TestPing(t *testing.T) {
	svc := startService(t)
	if err := svc.client.Call(t.Context(), "ping", nil, nil); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestUnknownAction(t *testing.T) {
	svc := startService(t)
	err := svc.client.Call(t.Context(), "definitely-not-an-action", nil, nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("unknown action: got %v, want *CallError", err)
	}
	if !strings.Contains(callErr.Message, "unknown action") {
		t.Errorf("error message = %q", callErr.Message)
	}
}

func TestDepositAndStatus(t *testing.T) {
	svc := startService(t)

	err := svc.client.Call(t.Context(), "deposit", map[string]any{
		"principal": erin.String(),
		"amount":    uint64(750),
	}, nil)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}

	var status StatusResult
	if err := svc.client.Call(t.Context(), "status", nil, &status); err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Balance != 750 {
		t.Errorf("balance = %d, want 750", status.Balance)
	}
	if len(status.Approvers) != 2 {
		t.Errorf("approvers = %v, want 2 entries", status.Approvers)
	}
	if status.MinApprovals != 2 {
		t.Errorf("min_approvals = %d, want 2", status.MinApprovals)
	}
	if status.Holder != alice {
		t.Errorf("holder = %v, want %v", status.Holder, alice)
	}
	if status.LedgerID != svc.ledger.ID() {
		t.Errorf("ledger_id = %q, want %q", status.LedgerID, svc.ledger.ID())
	}
	if status.JournalLen == 0 {
		t.Error("journal_len = 0 after genesis and deposit")
	}
}

func TestDepositErrorsPropagate(t *testing.T) {
	svc := startService(t)
	err := svc.client.Call(t.Context(), "deposit", map[string]any{
		"principal": erin.String(),
		"amount":    uint64(0),
	}, nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("zero deposit: got %v, want *CallError", err)
	}
	if !strings.Contains(callErr.Message, "amount") {
		t.Errorf("error message = %q", callErr.Message)
	}
}

func TestProposalWorkflow(t *testing.T) {
	svc := startService(t)
	ctx := t.Context()

	if err := svc.client.Call(ctx, "deposit", map[string]any{
		"principal": erin.String(),
		"amount":    uint64(1000),
	}, nil); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	var proposed ProposeResult
	err := svc.client.Call(ctx, "propose", map[string]any{
		"proposer":  alice.String(),
		"recipient": erin.String(),
		"amount":    uint64(400),
		"reason":    "invoice 1138",
	}, &proposed)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	// One approval short of quorum.
	err = svc.client.Call(ctx, "execute", map[string]any{
		"executor":    erin.String(),
		"proposal_id": proposed.ProposalID,
	}, nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("premature execute: got %v, want *CallError", err)
	}

	if err := svc.client.Call(ctx, "approve", map[string]any{
		"approver":    bob.String(),
		"proposal_id": proposed.ProposalID,
	}, nil); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if err := svc.client.Call(ctx, "execute", map[string]any{
		"executor":    erin.String(),
		"proposal_id": proposed.ProposalID,
	}, nil); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var proposal treasury.Proposal
	if err := svc.client.Call(ctx, "proposal", map[string]any{
		"proposal_id": proposed.ProposalID,
	}, &proposal); err != nil {
		t.Fatalf("proposal: %v", err)
	}
	if !proposal.Executed {
		t.Error("proposal not marked executed")
	}
	if proposal.Amount != 400 {
		t.Errorf("amount = %d, want 400", proposal.Amount)
	}

	var proposals ProposalsResult
	if err := svc.client.Call(ctx, "proposals", nil, &proposals); err != nil {
		t.Fatalf("proposals: %v", err)
	}
	if len(proposals.Proposals) != 1 {
		t.Errorf("proposals = %d entries, want 1", len(proposals.Proposals))
	}

	if got := svc.ledger.Balance(); got != 600 {
		t.Errorf("balance = %d, want 600", got)
	}
}

func TestReleaseRequiresToken(t *testing.T) {
	svc := startService(t)
	ctx := t.Context()

	if err := svc.client.Call(ctx, "deposit", map[string]any{
		"principal": erin.String(),
		"amount":    uint64(500),
	}, nil); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// No token at all.
	err := svc.client.Call(ctx, "release", map[string]any{
		"recipient": erin.String(),
		"amount":    uint64(100),
	}, nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("release without token: got %v, want *CallError", err)
	}

	// Token signed by the wrong key.
	_, wrongKey, err := capability.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	forged, err := capability.Mint(wrongKey, &capability.Token{
		Holder:    alice,
		LedgerID:  svc.ledger.ID(),
		ID:        "forged",
		IssuedAt:  testClockEpoch.Unix(),
		ExpiresAt: testClockEpoch.Add(time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	forgedClient := NewClientWithToken(svc.socketPath, forged)
	err = forgedClient.Call(ctx, "release", map[string]any{
		"recipient": erin.String(),
		"amount":    uint64(100),
	}, nil)
	if !errors.As(err, &callErr) {
		t.Fatalf("release with forged token: got %v, want *CallError", err)
	}

	if got := svc.ledger.Balance(); got != 500 {
		t.Errorf("balance = %d, want 500", got)
	}
}

func TestReleaseWithValidToken(t *testing.T) {
	svc := startService(t)
	ctx := t.Context()

	if err := svc.client.Call(ctx, "deposit", map[string]any{
		"principal": erin.String(),
		"amount":    uint64(500),
	}, nil); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	holderClient := NewClientWithToken(svc.socketPath, svc.mintHolderToken(t, alice))
	if err := holderClient.Call(ctx, "release", map[string]any{
		"recipient": erin.String(),
		"amount":    uint64(200),
	}, nil); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := svc.ledger.Balance(); got != 300 {
		t.Errorf("balance = %d, want 300", got)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := startService(t)
	ctx := t.Context()

	expired, err := capability.Mint(svc.private, &capability.Token{
		Holder:    alice,
		LedgerID:  svc.ledger.ID(),
		ID:        "expired",
		IssuedAt:  testClockEpoch.Add(-10 * time.Minute).Unix(),
		ExpiresAt: testClockEpoch.Add(-5 * time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	client := NewClientWithToken(svc.socketPath, expired)
	err = client.Call(ctx, "mint-token", nil, nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expired token: got %v, want *CallError", err)
	}
	if !strings.Contains(callErr.Message, "expired") {
		t.Errorf("error message = %q", callErr.Message)
	}
}

func TestMintTokenRefresh(t *testing.T) {
	svc := startService(t)
	ctx := t.Context()

	client := NewClientWithToken(svc.socketPath, svc.mintHolderToken(t, alice))
	var minted TokenResult
	if err := client.Call(ctx, "mint-token", nil, &minted); err != nil {
		t.Fatalf("mint-token: %v", err)
	}
	if len(minted.Token) == 0 {
		t.Fatal("mint-token returned no token")
	}

	// The refreshed token works for a release.
	if err := svc.client.Call(ctx, "deposit", map[string]any{
		"principal": erin.String(),
		"amount":    uint64(50),
	}, nil); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fresh := NewClientWithToken(svc.socketPath, minted.Token)
	if err := fresh.Call(ctx, "release", map[string]any{
		"recipient": erin.String(),
		"amount":    uint64(50),
	}, nil); err != nil {
		t.Fatalf("release with refreshed token: %v", err)
	}
}

func TestTransferCapabilityInvalidatesOldToken(t *testing.T) {
	svc := startService(t)
	ctx := t.Context()

	oldToken := svc.mintHolderToken(t, alice)
	client := NewClientWithToken(svc.socketPath, oldToken)

	var result TokenResult
	if err := client.Call(ctx, "transfer-capability", map[string]any{
		"new_holder": bob.String(),
	}, &result); err != nil {
		t.Fatalf("transfer-capability: %v", err)
	}
	if len(result.Token) == 0 {
		t.Fatal("transfer returned no replacement token")
	}

	var status StatusResult
	if err := svc.client.Call(ctx, "status", nil, &status); err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Holder != bob {
		t.Errorf("holder = %v, want %v", status.Holder, bob)
	}

	// The old token names alice, no longer the holder.
	err := client.Call(ctx, "mint-token", nil, nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("stale token: got %v, want *CallError", err)
	}
	if !strings.Contains(callErr.Message, "not the current holder") {
		t.Errorf("error message = %q", callErr.Message)
	}

	// The replacement token, naming bob, works.
	fresh := NewClientWithToken(svc.socketPath, result.Token)
	if err := fresh.Call(ctx, "mint-token", nil, &result); err != nil {
		t.Errorf("mint-token with replacement: %v", err)
	}
}

func TestRosterAndConfigActions(t *testing.T) {
	svc := startService(t)
	ctx := t.Context()

	carol := ref.MustPrincipal("council/carol")
	if err := svc.client.Call(ctx, "approver-add", map[string]any{
		"actor":     alice.String(),
		"principal": carol.String(),
	}, nil); err != nil {
		t.Fatalf("approver-add: %v", err)
	}
	if !svc.ledger.IsApprover(carol) {
		t.Error("carol not on roster")
	}

	if err := svc.client.Call(ctx, "config-update", map[string]any{
		"actor":         alice.String(),
		"min_approvals": 3,
		"max_approvers": 5,
	}, nil); err != nil {
		t.Fatalf("config-update: %v", err)
	}
	if got := svc.ledger.MinApprovals(); got != 3 {
		t.Errorf("min_approvals = %d, want 3", got)
	}

	if err := svc.client.Call(ctx, "approver-remove", map[string]any{
		"actor":     alice.String(),
		"principal": carol.String(),
	}, nil); err == nil {
		t.Error("removal below quorum succeeded")
	}
}

func TestJournalRead(t *testing.T) {
	svc := startService(t)
	ctx := t.Context()

	if err := svc.client.Call(ctx, "deposit", map[string]any{
		"principal": erin.String(),
		"amount":    uint64(10),
	}, nil); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	var result JournalResult
	if err := svc.client.Call(ctx, "journal", nil, &result); err != nil {
		t.Fatalf("journal: %v", err)
	}
	// Genesis record, two roster entries, and the deposit.
	if len(result.Entries) != 4 {
		t.Fatalf("journal = %d entries, want 4", len(result.Entries))
	}
	last := result.Entries[len(result.Entries)-1]
	if last.Type != journal.TypeFundsDeposited {
		t.Errorf("last entry type = %q, want %q", last.Type, journal.TypeFundsDeposited)
	}
	var payload journal.FundsDeposited
	if err := last.Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Amount != 10 {
		t.Errorf("amount = %d, want 10", payload.Amount)
	}

	// Paged read from a later sequence number.
	if err := svc.client.Call(ctx, "journal", map[string]any{
		"from": uint64(4),
	}, &result); err != nil {
		t.Fatalf("journal from 4: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Errorf("paged journal = %d entries, want 1", len(result.Entries))
	}
}

func TestWriteBootToken(t *testing.T) {
	svc := startService(t)
	ctx := t.Context()

	tokenPath := filepath.Join(t.TempDir(), "capability.token")
	if err := svc.treasury.WriteBootToken(tokenPath); err != nil {
		t.Fatalf("WriteBootToken: %v", err)
	}
	info, err := os.Stat(tokenPath)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file mode = %o, want 0600", perm)
	}

	// The boot token works for capability-gated actions as-is.
	tokenBytes, err := os.ReadFile(tokenPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := svc.client.Call(ctx, "deposit", map[string]any{
		"principal": erin.String(),
		"amount":    uint64(100),
	}, nil); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := svc.client.Call(ctx, "release", map[string]any{
		"token":     tokenBytes,
		"recipient": erin.String(),
		"amount":    uint64(40),
	}, nil); err != nil {
		t.Fatalf("release with boot token: %v", err)
	}
	if got := svc.ledger.Balance(); got != 60 {
		t.Errorf("balance = %d, want 60", got)
	}
}
