// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package network

import (
	"log/slog"

	"github.com/keystone-foundation/keystone/cmd/keystone/cli"
	"github.com/keystone-foundation/keystone/lib/config"
	libnetwork "github.com/keystone-foundation/keystone/lib/network"
)

// Command returns the "network" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "network",
		Summary: "Manage a token hierarchy",
		Description: `Manage a token hierarchy: initialize a store, create the master
token, issue tokens to nodes, and verify them.`,
		Subcommands: []*cli.Command{
			initCommand(),
			createMasterCommand(),
			issueCommand(),
			verifyCommand(),
			showCommand(),
			listCommand(),
		},
	}
}

// resolveStore returns the store directory: the --store flag when set,
// otherwise the configured default.
func resolveStore(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.Paths.Store, nil
}

// open loads the network from the resolved store directory.
func open(storeFlag string, logger *slog.Logger) (*libnetwork.Network, error) {
	dir, err := resolveStore(storeFlag)
	if err != nil {
		return nil, err
	}
	return libnetwork.Open(dir, logger)
}
