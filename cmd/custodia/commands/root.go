// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the custodia CLI command tree.
package commands

import (
	"fmt"

	"github.com/custodia-foundation/custodia/cmd/custodia/cli"
	"github.com/custodia-foundation/custodia/lib/version"
)

// Root returns the top-level custodia command.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "custodia",
		Summary: "treasury custody engine client",
		Description: "custodia is the command-line client for the treasury service.\n" +
			"It talks to the service over its Unix socket: deposits, the\n" +
			"multi-party withdrawal workflow, roster and quorum management,\n" +
			"the governance capability, and the audit journal.",
		Subcommands: []*cli.Command{
			statusCommand(),
			depositCommand(),
			proposeCommand(),
			approveCommand(),
			executeCommand(),
			proposalCommand(),
			approverCommand(),
			quorumCommand(),
			capabilityCommand(),
			journalCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "print version information",
		Run: func(args []string) error {
			fmt.Println("custodia", version.Full())
			return nil
		},
	}
}
