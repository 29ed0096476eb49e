// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "custodia",
		Subcommands: []*Command{
			{
				Name: "status",
				Run: func(args []string) error {
					called = "status"
					return nil
				},
			},
			{
				Name: "deposit",
				Run: func(args []string) error {
					called = "deposit"
					return nil
				},
			},
		},
	}

	if err := root.Execute([]string{"deposit"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "deposit" {
		t.Errorf("dispatched to %q, want %q", called, "deposit")
	}
}

func TestCommand_Execute_NestedSubcommands(t *testing.T) {
	var called string
	var receivedArgs []string

	root := &Command{
		Name: "custodia",
		Subcommands: []*Command{
			{
				Name: "proposal",
				Subcommands: []*Command{
					{
						Name: "show",
						Run: func(args []string) error {
							called = "proposal show"
							receivedArgs = args
							return nil
						},
					},
				},
			},
		},
	}

	if err := root.Execute([]string{"proposal", "show", "7"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "proposal show" {
		t.Errorf("dispatched to %q, want %q", called, "proposal show")
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "7" {
		t.Errorf("args = %v, want [7]", receivedArgs)
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var socketPath string
	var positional []string

	command := &Command{
		Name: "deposit",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("deposit", pflag.ContinueOnError)
			flags.StringVar(&socketPath, "socket", "/run/custodia/treasury.sock", "socket path")
			return flags
		},
		Run: func(args []string) error {
			positional = args
			return nil
		},
	}

	if err := command.Execute([]string{"--socket", "/tmp/test.sock", "500"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if socketPath != "/tmp/test.sock" {
		t.Errorf("socket = %q, want /tmp/test.sock", socketPath)
	}
	if len(positional) != 1 || positional[0] != "500" {
		t.Errorf("positional args = %v, want [500]", positional)
	}
}

func TestCommand_Execute_UnknownSubcommandSuggests(t *testing.T) {
	root := &Command{
		Name: "custodia",
		Subcommands: []*Command{
			{Name: "status", Run: func([]string) error { return nil }},
			{Name: "deposit", Run: func([]string) error { return nil }},
		},
	}

	err := root.Execute([]string{"stats"})
	if err == nil {
		t.Fatal("Execute() with unknown subcommand succeeded")
	}
	if !strings.Contains(err.Error(), `"status"`) {
		t.Errorf("error %q does not suggest status", err)
	}
}

func TestCommand_Execute_UnknownFlagSuggests(t *testing.T) {
	command := &Command{
		Name: "status",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
			flags.String("socket", "", "socket path")
			return flags
		},
		Run: func([]string) error { return nil },
	}

	err := command.Execute([]string{"--sockt", "/tmp/x"})
	if err == nil {
		t.Fatal("Execute() with unknown flag succeeded")
	}
	if !strings.Contains(err.Error(), "--socket") {
		t.Errorf("error %q does not suggest --socket", err)
	}
}

func TestCommand_PrintHelp_ListsSubcommands(t *testing.T) {
	root := &Command{
		Name:    "custodia",
		Summary: "treasury custody engine client",
		Subcommands: []*Command{
			{Name: "status", Summary: "show ledger state"},
			{Name: "journal", Summary: "read the audit journal"},
		},
	}

	var out bytes.Buffer
	root.PrintHelp(&out)
	help := out.String()

	for _, want := range []string{"status", "show ledger state", "journal", "read the audit journal"} {
		if !strings.Contains(help, want) {
			t.Errorf("help output missing %q:\n%s", want, help)
		}
	}
}

func TestExitError(t *testing.T) {
	err := &ExitError{Code: 3}
	if got := err.ExitCode(); got != 3 {
		t.Errorf("ExitCode() = %d, want 3", got)
	}
	if !strings.Contains(err.Error(), "3") {
		t.Errorf("Error() = %q, want mention of code 3", err.Error())
	}
}
