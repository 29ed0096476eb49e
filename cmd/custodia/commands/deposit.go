// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/custodia-foundation/custodia/cmd/custodia/cli"
)

func depositCommand() *cli.Command {
	var (
		socket string
		from   string
	)
	return &cli.Command{
		Name:    "deposit",
		Summary: "add funds to the pooled balance",
		Usage:   "custodia deposit <amount> --from <principal> [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("deposit", pflag.ContinueOnError)
			flags.StringVar(&socket, "socket", defaultSocket(), "treasury service socket path")
			flags.StringVar(&from, "from", "", "depositing principal (required)")
			return flags
		},
		Examples: []cli.Example{
			{Description: "Deposit 500 units", Command: "custodia deposit 500 --from council/alice"},
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one amount argument")
			}
			amount, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			depositor, err := parsePrincipal("--from", from)
			if err != nil {
				return err
			}

			ctx, cancel := callContext()
			defer cancel()
			err = newClient(socket).Call(ctx, "deposit", map[string]any{
				"principal": depositor.String(),
				"amount":    amount,
			}, nil)
			if err != nil {
				return err
			}
			fmt.Printf("deposited %d from %s\n", amount, depositor)
			return nil
		},
	}
}
