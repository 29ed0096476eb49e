// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/custodia-foundation/custodia/cmd/custodia/cli"
	"github.com/custodia-foundation/custodia/lib/service"
)

func statusCommand() *cli.Command {
	var (
		socket string
		asJSON bool
	)
	return &cli.Command{
		Name:    "status",
		Summary: "show ledger balance, roster, and quorum",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
			flags.StringVar(&socket, "socket", defaultSocket(), "treasury service socket path")
			flags.BoolVar(&asJSON, "json", false, "output as JSON")
			return flags
		},
		Examples: []cli.Example{
			{Description: "Show the treasury state", Command: "custodia status"},
		},
		Run: func(args []string) error {
			ctx, cancel := callContext()
			defer cancel()

			var status service.StatusResult
			if err := newClient(socket).Call(ctx, "status", nil, &status); err != nil {
				return err
			}

			if asJSON {
				return cli.WriteJSON(status)
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Ledger:\t%s\n", status.LedgerID)
			fmt.Fprintf(tw, "Balance:\t%d\n", status.Balance)
			fmt.Fprintf(tw, "Quorum:\t%d of %d approvers (capacity %d)\n",
				status.MinApprovals, len(status.Approvers), status.MaxApprovers)
			fmt.Fprintf(tw, "Capability holder:\t%s\n", status.Holder)
			fmt.Fprintf(tw, "Next proposal:\t%d\n", status.NextProposalID)
			fmt.Fprintf(tw, "Journal entries:\t%d\n", status.JournalLen)
			tw.Flush()

			if len(status.Approvers) > 0 {
				fmt.Println("\nApprovers:")
				for _, approver := range status.Approvers {
					fmt.Printf("  %s\n", approver)
				}
			}
			return nil
		},
	}
}
