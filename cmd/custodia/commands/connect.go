// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/custodia-foundation/custodia/cmd/custodia/cli"
	"github.com/custodia-foundation/custodia/lib/config"
	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/service"
)

// defaultSocket resolves the treasury socket path for flag defaults:
// CUSTODIA_SOCKET if set, otherwise the socket from the config file
// named by CUSTODIA_CONFIG, otherwise the stock path.
func defaultSocket() string {
	if socket := os.Getenv("CUSTODIA_SOCKET"); socket != "" {
		return socket
	}
	if os.Getenv("CUSTODIA_CONFIG") != "" {
		cfg, err := config.Load()
		if err == nil {
			return cfg.Service.SocketPath
		}
		cli.NewCommandLogger().Warn("ignoring unreadable config for socket default",
			"error", err,
		)
	}
	return "/run/custodia/treasury.sock"
}

// callTimeout bounds a single CLI request against the service.
const callTimeout = 30 * time.Second

// callContext returns a context for one service call.
func callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), callTimeout)
}

// newClient builds an unauthenticated client for the given socket.
func newClient(socketPath string) *service.Client {
	return service.NewClient(socketPath)
}

// newTokenClient builds a client carrying the capability token read
// from tokenFile.
func newTokenClient(socketPath, tokenFile string) (*service.Client, error) {
	if tokenFile == "" {
		return nil, fmt.Errorf("--token-file is required")
	}
	return service.NewClientWithTokenFile(socketPath, tokenFile)
}

// parsePrincipal parses a required principal argument, reporting the
// flag or argument name on failure.
func parsePrincipal(name, raw string) (ref.Principal, error) {
	if raw == "" {
		return ref.Principal{}, fmt.Errorf("%s is required", name)
	}
	principal, err := ref.ParsePrincipal(raw)
	if err != nil {
		return ref.Principal{}, fmt.Errorf("%s: %w", name, err)
	}
	return principal, nil
}
