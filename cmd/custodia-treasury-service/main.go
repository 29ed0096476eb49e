// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-foundation/custodia/lib/capability"
	"github.com/custodia-foundation/custodia/lib/clock"
	"github.com/custodia-foundation/custodia/lib/config"
	"github.com/custodia-foundation/custodia/lib/journal"
	"github.com/custodia-foundation/custodia/lib/service"
	"github.com/custodia-foundation/custodia/lib/treasury"
	"github.com/custodia-foundation/custodia/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "path to custodia.yaml (default: $CUSTODIA_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("custodia-treasury-service %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	tokenTTL, err := cfg.TokenTTL()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The token signing keypair lives in the state directory next to
	// the journal. Losing it only invalidates outstanding tokens; the
	// boot token written below gets the holder going again.
	public, private, generated, err := capability.LoadOrGenerateKeypair(cfg.Paths.State)
	if err != nil {
		return fmt.Errorf("loading signing keypair: %w", err)
	}
	if generated {
		logger.Info("generated token signing keypair", "state_dir", cfg.Paths.State)
	}

	store, err := journal.OpenStore(ctx, journal.StoreConfig{
		Path:     cfg.JournalPath(),
		PoolSize: cfg.Ledger.JournalPoolSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	// First boot creates the ledger from the genesis document; every
	// boot after that replays the journal and ignores the file.
	var ledger *treasury.Ledger
	var capabilityHandle *treasury.Capability
	if store.Len() == 0 {
		genesis, err := config.LoadGenesis(cfg.Paths.Genesis)
		if err != nil {
			return fmt.Errorf("loading genesis: %w", err)
		}
		ledger, capabilityHandle, err = treasury.Initialize(treasury.Config{
			Journal:         store,
			InitialHolder:   genesis.InitialHolder,
			Approvers:       genesis.Approvers,
			MinApprovals:    genesis.MinApprovals,
			MaxApprovers:    genesis.MaxApprovers,
			MaxReasonLength: cfg.Ledger.MaxReasonLength,
		})
		if err != nil {
			return fmt.Errorf("creating ledger: %w", err)
		}
		logger.Info("ledger created from genesis",
			"ledger_id", ledger.ID(),
			"holder", capabilityHandle.Holder(),
			"approvers", len(ledger.Approvers()),
		)
	} else {
		entries, err := store.ReadFrom(ctx, 1)
		if err != nil {
			return err
		}
		ledger, capabilityHandle, err = treasury.Restore(store, nil, entries)
		if err != nil {
			return err
		}
		logger.Info("ledger restored from journal",
			"ledger_id", ledger.ID(),
			"entries", len(entries),
			"balance", ledger.Balance(),
			"holder", capabilityHandle.Holder(),
		)
	}

	treasuryService, err := service.NewTreasury(service.TreasuryConfig{
		Ledger:         ledger,
		Capability:     capabilityHandle,
		Journal:        store,
		SigningPublic:  public,
		SigningPrivate: private,
		TokenTTL:       tokenTTL,
		Clock:          clock.Real(),
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	// Mint a boot token for the current holder so they can reach the
	// capability-gated actions without an unexpired prior token. The
	// holder refreshes from here with `custodia capability refresh`.
	bootTokenPath := filepath.Join(cfg.Paths.State, "capability.token")
	if err := treasuryService.WriteBootToken(bootTokenPath); err != nil {
		return fmt.Errorf("writing boot token: %w", err)
	}
	logger.Info("boot capability token written",
		"path", bootTokenPath,
		"holder", capabilityHandle.Holder(),
		"ttl", tokenTTL,
	)

	socketServer := service.NewSocketServer(cfg.Service.SocketPath, logger)
	treasuryService.Register(socketServer)

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- socketServer.Serve(ctx)
	}()

	logger.Info("treasury service running",
		"socket", cfg.Service.SocketPath,
		"ledger_id", ledger.ID(),
		"journal", cfg.JournalPath(),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	if err := <-socketDone; err != nil {
		logger.Error("socket server error", "error", err)
	}
	return nil
}
