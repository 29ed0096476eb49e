// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"
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
	"github.com/custodia-foundation/custodia/lib/service"
	"github.com/custodia-foundation/custodia/lib/treasury"
)

var (
	testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	alice     = ref.MustPrincipal("council/alice")
	bob       = ref.MustPrincipal("council/bob")
	erin      = ref.MustPrincipal("vendor/erin")
)

type memoryReader struct {
	memory *journal.Memory
}

func (r *memoryReader) ReadFrom(ctx context.Context, seq uint64) ([]journal.Entry, error) {
	return r.memory.ReadFrom(seq), nil
}

func (r *memoryReader) Len() uint64 {
	return uint64(r.memory.Len())
}

// startTestService boots a treasury service on a temp socket: roster
// {alice, bob}, quorum 2, capability held by alice. Returns the
// socket path and the live ledger for state assertions.
func startTestService(t *testing.T) (string, *treasury.Ledger) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	jnl := journal.NewMemory(clock.NewFake(testEpoch))
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

	handlers, err := service.NewTreasury(service.TreasuryConfig{
		Ledger:         ledger,
		Capability:     capabilityHandle,
		Journal:        &memoryReader{memory: jnl},
		SigningPublic:  public,
		SigningPrivate: private,
		TokenTTL:       5 * time.Minute,
		Clock:          clock.Real(),
		Logger:         logger,
	})
	if err != nil {
		t.Fatalf("NewTreasury: %v", err)
	}

	socketPath := filepath.Join(t.TempDir(), "treasury.sock")
	server := service.NewSocketServer(socketPath, logger)
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
	for {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		if t.Context().Err() != nil {
			t.Fatalf("socket %s did not appear before test context expired", socketPath)
		}
		runtime.Gosched()
	}

	return socketPath, ledger
}

// captureStdout runs fn with os.Stdout redirected to a pipe and
// returns what fn wrote.
func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()
	read, write, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = write
	defer func() { os.Stdout = orig }()

	collected := make(chan string)
	go func() {
		buf := make([]byte, 0, 4096)
		chunk := make([]byte, 1024)
		for {
			n, readErr := read.Read(chunk)
			buf = append(buf, chunk[:n]...)
			if readErr != nil {
				break
			}
		}
		collected <- string(buf)
	}()

	runErr := fn()
	write.Close()
	output := <-collected
	read.Close()
	if runErr != nil {
		t.Fatalf("command failed: %v\noutput: %s", runErr, output)
	}
	return output
}

func TestDepositAndStatusCommands(t *testing.T) {
	socketPath, ledger := startTestService(t)

	output := captureStdout(t, func() error {
		return Root().Execute([]string{"deposit", "500", "--from", "council/alice", "--socket", socketPath})
	})
	if !strings.Contains(output, "deposited 500 from council/alice") {
		t.Errorf("deposit output = %q, want confirmation line", output)
	}
	if got := ledger.Balance(); got != 500 {
		t.Errorf("balance = %d after deposit command, want 500", got)
	}

	output = captureStdout(t, func() error {
		return Root().Execute([]string{"status", "--socket", socketPath})
	})
	if !strings.Contains(output, "Balance:") || !strings.Contains(output, "500") {
		t.Errorf("status output = %q, want balance line with 500", output)
	}
	if !strings.Contains(output, "council/alice") {
		t.Errorf("status output = %q, want capability holder", output)
	}
}

func TestProposalWorkflowCommands(t *testing.T) {
	socketPath, ledger := startTestService(t)

	if err := ledger.Deposit(alice, 1000); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	output := captureStdout(t, func() error {
		return Root().Execute([]string{
			"propose", "400",
			"--as", "council/alice",
			"--to", "vendor/erin",
			"--reason", "invoice 1138",
			"--socket", socketPath,
		})
	})
	if !strings.Contains(output, "proposal 0 opened: 400 to vendor/erin") {
		t.Errorf("propose output = %q, want confirmation line", output)
	}

	captureStdout(t, func() error {
		return Root().Execute([]string{"approve", "0", "--as", "council/bob", "--socket", socketPath})
	})
	captureStdout(t, func() error {
		return Root().Execute([]string{"execute", "0", "--as", "vendor/erin", "--socket", socketPath})
	})

	if got := ledger.Balance(); got != 600 {
		t.Errorf("balance = %d after executed withdrawal, want 600", got)
	}
	proposal, err := ledger.Proposal(0)
	if err != nil {
		t.Fatalf("Proposal: %v", err)
	}
	if !proposal.Executed {
		t.Error("proposal not marked executed after execute command")
	}
	if proposal.Recipient != erin {
		t.Errorf("proposal recipient = %s, want %s", proposal.Recipient, erin)
	}
}
