// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/custodia-foundation/custodia/cmd/custodia/cli"
	"github.com/custodia-foundation/custodia/lib/service"
)

func capabilityCommand() *cli.Command {
	return &cli.Command{
		Name:    "capability",
		Summary: "use and manage the governance access capability",
		Description: "The capability is the non-workflow release path: its holder (the\n" +
			"external governance executor) can withdraw directly, bypassing\n" +
			"the approval quorum. These commands present the capability token\n" +
			"minted by the service.",
		Subcommands: []*cli.Command{
			capabilityReleaseCommand(),
			capabilityRefreshCommand(),
			capabilityTransferCommand(),
		},
	}
}

func capabilityReleaseCommand() *cli.Command {
	var (
		socket    string
		tokenFile string
		recipient string
	)
	return &cli.Command{
		Name:    "release",
		Summary: "withdraw funds via the capability",
		Usage:   "custodia capability release <amount> --to <recipient> --token-file <path> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("capability release", pflag.ContinueOnError)
			flags.StringVar(&socket, "socket", defaultSocket(), "treasury service socket path")
			flags.StringVar(&tokenFile, "token-file", "", "capability token file (required)")
			flags.StringVar(&recipient, "to", "", "withdrawal recipient (required)")
			return flags
		},
		Examples: []cli.Example{
			{
				Description: "Release funds approved by a governance vote",
				Command:     "custodia capability release 250 --to grants/team-infra --token-file /run/custodia/capability.token",
			},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one amount argument")
			}
			amount, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			recipientPrincipal, err := parsePrincipal("--to", recipient)
			if err != nil {
				return err
			}
			client, err := newTokenClient(socket, tokenFile)
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()
			err = client.Call(ctx, "release", map[string]any{
				"recipient": recipientPrincipal.String(),
				"amount":    amount,
			}, nil)
			if err != nil {
				return err
			}
			fmt.Printf("released %d to %s\n", amount, recipientPrincipal)
			return nil
		},
	}
}

func capabilityRefreshCommand() *cli.Command {
	var (
		socket    string
		tokenFile string
	)
	return &cli.Command{
		Name:    "refresh",
		Summary: "mint a fresh capability token before the current one expires",
		Usage:   "custodia capability refresh --token-file <path> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("capability refresh", pflag.ContinueOnError)
			flags.StringVar(&socket, "socket", defaultSocket(), "treasury service socket path")
			flags.StringVar(&tokenFile, "token-file", "", "capability token file, overwritten in place (required)")
			return flags
		},
		Run: func(args []string) error {
			client, err := newTokenClient(socket, tokenFile)
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()
			var minted service.TokenResult
			if err := client.Call(ctx, "mint-token", nil, &minted); err != nil {
				return err
			}
			if err := writeTokenFile(tokenFile, minted.Token); err != nil {
				return err
			}
			fmt.Printf("token refreshed: %s\n", tokenFile)
			return nil
		},
	}
}

func capabilityTransferCommand() *cli.Command {
	var (
		socket    string
		tokenFile string
		outFile   string
	)
	return &cli.Command{
		Name:    "transfer",
		Summary: "transfer the capability to a new holder",
		Usage:   "custodia capability transfer <new-holder> --token-file <path> [flags]",
		Description: "Records a new capability holder and mints a token for them. The\n" +
			"presented token stops working immediately; the replacement is\n" +
			"written to --out (or over --token-file when --out is not given).",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("capability transfer", pflag.ContinueOnError)
			flags.StringVar(&socket, "socket", defaultSocket(), "treasury service socket path")
			flags.StringVar(&tokenFile, "token-file", "", "current capability token file (required)")
			flags.StringVar(&outFile, "out", "", "where to write the new holder's token")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one new-holder argument")
			}
			newHolder, err := parsePrincipal("new-holder", args[0])
			if err != nil {
				return err
			}
			client, err := newTokenClient(socket, tokenFile)
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()
			var result service.TokenResult
			err = client.Call(ctx, "transfer-capability", map[string]any{
				"new_holder": newHolder.String(),
			}, &result)
			if err != nil {
				return err
			}

			destination := outFile
			if destination == "" {
				destination = tokenFile
			}
			if err := writeTokenFile(destination, result.Token); err != nil {
				return err
			}
			fmt.Printf("capability transferred to %s; token written to %s\n", newHolder, destination)
			return nil
		},
	}
}

// writeTokenFile writes token bytes with owner-only permissions.
func writeTokenFile(path string, token []byte) error {
	if err := os.WriteFile(path, token, 0600); err != nil {
		return fmt.Errorf("writing token file %s: %w", path, err)
	}
	return nil
}
