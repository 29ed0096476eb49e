// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/custodia-foundation/custodia/cmd/custodia/cli"
	"github.com/custodia-foundation/custodia/lib/service"
	"github.com/custodia-foundation/custodia/lib/treasury"
)

func proposeCommand() *cli.Command {
	var (
		socket    string
		proposer  string
		recipient string
		reason    string
	)
	return &cli.Command{
		Name:    "propose",
		Summary: "open a multi-party withdrawal proposal",
		Usage:   "custodia propose <amount> --as <approver> --to <recipient> [flags]",
		Description: "Opens a withdrawal proposal. The proposer must be on the approver\n" +
			"roster and counts as the first approval. The amount is not checked\n" +
			"against the balance until execution.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("propose", pflag.ContinueOnError)
			flags.StringVar(&socket, "socket", defaultSocket(), "treasury service socket path")
			flags.StringVar(&proposer, "as", "", "proposing approver (required)")
			flags.StringVar(&recipient, "to", "", "withdrawal recipient (required)")
			flags.StringVar(&reason, "reason", "", "human-readable justification")
			return flags
		},
		Examples: []cli.Example{
			{
				Description: "Propose paying a vendor invoice",
				Command:     "custodia propose 400 --as council/alice --to vendor/acme --reason 'invoice 1138'",
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
			proposerPrincipal, err := parsePrincipal("--as", proposer)
			if err != nil {
				return err
			}
			recipientPrincipal, err := parsePrincipal("--to", recipient)
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()
			var result service.ProposeResult
			err = newClient(socket).Call(ctx, "propose", map[string]any{
				"proposer":  proposerPrincipal.String(),
				"recipient": recipientPrincipal.String(),
				"amount":    amount,
				"reason":    reason,
			}, &result)
			if err != nil {
				return err
			}
			fmt.Printf("proposal %d opened: %d to %s\n", result.ProposalID, amount, recipientPrincipal)
			return nil
		},
	}
}

func approveCommand() *cli.Command {
	var (
		socket   string
		approver string
	)
	return &cli.Command{
		Name:    "approve",
		Summary: "approve an open withdrawal proposal",
		Usage:   "custodia approve <proposal-id> --as <approver> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("approve", pflag.ContinueOnError)
			flags.StringVar(&socket, "socket", defaultSocket(), "treasury service socket path")
			flags.StringVar(&approver, "as", "", "approving roster member (required)")
			return flags
		},
		Examples: []cli.Example{
			{Description: "Second a proposal", Command: "custodia approve 0 --as council/bob"},
		},
		Run: func(args []string) error {
			id, err := proposalIDArg(args)
			if err != nil {
				return err
			}
			approverPrincipal, err := parsePrincipal("--as", approver)
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()
			err = newClient(socket).Call(ctx, "approve", map[string]any{
				"approver":    approverPrincipal.String(),
				"proposal_id": id,
			}, nil)
			if err != nil {
				return err
			}
			fmt.Printf("proposal %d approved by %s\n", id, approverPrincipal)
			return nil
		},
	}
}

func executeCommand() *cli.Command {
	var (
		socket   string
		executor string
	)
	return &cli.Command{
		Name:    "execute",
		Summary: "execute a proposal that has reached quorum",
		Usage:   "custodia execute <proposal-id> --as <principal> [flags]",
		Description: "Executes a withdrawal whose approvals meet the quorum. Any\n" +
			"principal may execute; the approvals are the authorization and\n" +
			"the executor is recorded for attribution only.",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("execute", pflag.ContinueOnError)
			flags.StringVar(&socket, "socket", defaultSocket(), "treasury service socket path")
			flags.StringVar(&executor, "as", "", "executing principal (required)")
			return flags
		},
		Run: func(args []string) error {
			id, err := proposalIDArg(args)
			if err != nil {
				return err
			}
			executorPrincipal, err := parsePrincipal("--as", executor)
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()
			err = newClient(socket).Call(ctx, "execute", map[string]any{
				"executor":    executorPrincipal.String(),
				"proposal_id": id,
			}, nil)
			if err != nil {
				return err
			}
			fmt.Printf("proposal %d executed\n", id)
			return nil
		},
	}
}

func proposalCommand() *cli.Command {
	return &cli.Command{
		Name:    "proposal",
		Summary: "inspect withdrawal proposals",
		Subcommands: []*cli.Command{
			proposalShowCommand(),
			proposalListCommand(),
		},
	}
}

func proposalShowCommand() *cli.Command {
	var (
		socket string
		asJSON bool
	)
	return &cli.Command{
		Name:    "show",
		Summary: "show one proposal",
		Usage:   "custodia proposal show <proposal-id> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("proposal show", pflag.ContinueOnError)
			flags.StringVar(&socket, "socket", defaultSocket(), "treasury service socket path")
			flags.BoolVar(&asJSON, "json", false, "output as JSON")
			return flags
		},
		Run: func(args []string) error {
			id, err := proposalIDArg(args)
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()
			var proposal treasury.Proposal
			err = newClient(socket).Call(ctx, "proposal", map[string]any{
				"proposal_id": id,
			}, &proposal)
			if err != nil {
				return err
			}

			if asJSON {
				return cli.WriteJSON(proposal)
			}
			printProposal(&proposal)
			return nil
		},
	}
}

func proposalListCommand() *cli.Command {
	var (
		socket string
		asJSON bool
		open   bool
	)
	return &cli.Command{
		Name:    "list",
		Summary: "list all proposals",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("proposal list", pflag.ContinueOnError)
			flags.StringVar(&socket, "socket", defaultSocket(), "treasury service socket path")
			flags.BoolVar(&asJSON, "json", false, "output as JSON")
			flags.BoolVar(&open, "open", false, "only proposals not yet executed")
			return flags
		},
		Run: func(args []string) error {
			ctx, cancel := callContext()
			defer cancel()
			var result service.ProposalsResult
			if err := newClient(socket).Call(ctx, "proposals", nil, &result); err != nil {
				return err
			}

			proposals := result.Proposals
			if open {
				filtered := proposals[:0]
				for _, proposal := range proposals {
					if !proposal.Executed {
						filtered = append(filtered, proposal)
					}
				}
				proposals = filtered
			}

			if asJSON {
				return cli.WriteJSON(proposals)
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tAMOUNT\tRECIPIENT\tAPPROVALS\tSTATE\tREASON")
			for _, proposal := range proposals {
				state := "open"
				if proposal.Executed {
					state = "executed"
				}
				fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\t%s\n",
					proposal.ID, proposal.Amount, proposal.Recipient,
					len(proposal.Approvals), state, proposal.Reason)
			}
			return tw.Flush()
		},
	}
}

func proposalIDArg(args []string) (uint64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one proposal-id argument")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid proposal id %q: %w", args[0], err)
	}
	return id, nil
}

func printProposal(proposal *treasury.Proposal) {
	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
	state := "open"
	if proposal.Executed {
		state = "executed"
	}
	fmt.Fprintf(tw, "Proposal:\t%d\n", proposal.ID)
	fmt.Fprintf(tw, "State:\t%s\n", state)
	fmt.Fprintf(tw, "Proposer:\t%s\n", proposal.Proposer)
	fmt.Fprintf(tw, "Recipient:\t%s\n", proposal.Recipient)
	fmt.Fprintf(tw, "Amount:\t%d\n", proposal.Amount)
	if proposal.Reason != "" {
		fmt.Fprintf(tw, "Reason:\t%s\n", proposal.Reason)
	}
	tw.Flush()
	fmt.Println("Approvals:")
	for _, approver := range proposal.Approvals {
		fmt.Printf("  %s\n", approver)
	}
}
