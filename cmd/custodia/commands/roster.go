// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/custodia-foundation/custodia/cmd/custodia/cli"
)

func approverCommand() *cli.Command {
	return &cli.Command{
		Name:    "approver",
		Summary: "manage the approver roster",
		Subcommands: []*cli.Command{
			approverAddCommand(),
			approverRemoveCommand(),
		},
	}
}

func approverAddCommand() *cli.Command {
	var (
		socket string
		actor  string
	)
	return &cli.Command{
		Name:    "add",
		Summary: "add a principal to the roster",
		Usage:   "custodia approver add <principal> --as <actor> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("approver add", pflag.ContinueOnError)
			flags.StringVar(&socket, "socket", defaultSocket(), "treasury service socket path")
			flags.StringVar(&actor, "as", "", "acting roster member (required)")
			return flags
		},
		Examples: []cli.Example{
			{Description: "Seat a new approver", Command: "custodia approver add council/dave --as council/alice"},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one principal argument")
			}
			principal, err := parsePrincipal("principal", args[0])
			if err != nil {
				return err
			}
			actorPrincipal, err := parsePrincipal("--as", actor)
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()
			err = newClient(socket).Call(ctx, "approver-add", map[string]any{
				"actor":     actorPrincipal.String(),
				"principal": principal.String(),
			}, nil)
			if err != nil {
				return err
			}
			fmt.Printf("approver %s added\n", principal)
			return nil
		},
	}
}

func approverRemoveCommand() *cli.Command {
	var (
		socket string
		actor  string
	)
	return &cli.Command{
		Name:    "remove",
		Summary: "remove a principal from the roster",
		Usage:   "custodia approver remove <principal> --as <actor> [flags]",
		Description: "Removes a roster member. Refused when the removal would leave\n" +
			"fewer approvers than the quorum requires. Approvals the member\n" +
			"already gave on open proposals keep counting.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("approver remove", pflag.ContinueOnError)
			flags.StringVar(&socket, "socket", defaultSocket(), "treasury service socket path")
			flags.StringVar(&actor, "as", "", "acting roster member (required)")
			return flags
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one principal argument")
			}
			principal, err := parsePrincipal("principal", args[0])
			if err != nil {
				return err
			}
			actorPrincipal, err := parsePrincipal("--as", actor)
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()
			err = newClient(socket).Call(ctx, "approver-remove", map[string]any{
				"actor":     actorPrincipal.String(),
				"principal": principal.String(),
			}, nil)
			if err != nil {
				return err
			}
			fmt.Printf("approver %s removed\n", principal)
			return nil
		},
	}
}

func quorumCommand() *cli.Command {
	var (
		socket       string
		actor        string
		minApprovals int
		maxApprovers int
	)
	return &cli.Command{
		Name:    "quorum",
		Summary: "update the quorum and roster capacity",
		Usage:   "custodia quorum --min <n> --max <n> --as <actor> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("quorum", pflag.ContinueOnError)
			flags.StringVar(&socket, "socket", defaultSocket(), "treasury service socket path")
			flags.StringVar(&actor, "as", "", "acting principal (required)")
			flags.IntVar(&minApprovals, "min", 0, "approvals required to execute a withdrawal")
			flags.IntVar(&maxApprovers, "max", 0, "maximum roster size")
			return flags
		},
		Examples: []cli.Example{
			{Description: "Require 3 of up to 7 approvers", Command: "custodia quorum --min 3 --max 7 --as council/alice"},
		},
		Run: func(args []string) error {
			actorPrincipal, err := parsePrincipal("--as", actor)
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()
			err = newClient(socket).Call(ctx, "config-update", map[string]any{
				"actor":         actorPrincipal.String(),
				"min_approvals": minApprovals,
				"max_approvers": maxApprovers,
			}, nil)
			if err != nil {
				return err
			}
			fmt.Printf("quorum set to %d of at most %d approvers\n", minApprovals, maxApprovers)
			return nil
		},
	}
}
