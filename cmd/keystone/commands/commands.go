// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete Keystone CLI command tree.
package commands

import (
	"fmt"

	backupcmd "github.com/keystone-foundation/keystone/cmd/keystone/backup"
	bundlecmd "github.com/keystone-foundation/keystone/cmd/keystone/bundle"
	"github.com/keystone-foundation/keystone/cmd/keystone/cli"
	networkcmd "github.com/keystone-foundation/keystone/cmd/keystone/network"
	wizardcmd "github.com/keystone-foundation/keystone/cmd/keystone/wizard"
	"github.com/keystone-foundation/keystone/lib/version"
)

// Root builds and returns the complete Keystone CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "keystone",
		Description: `Keystone: hierarchical token trust engine.

Create a token hierarchy rooted in a self-signed master token, issue
hash-linked tokens to nodes, and verify them through chain, master,
and issuer paths.`,
		Subcommands: []*cli.Command{
			networkcmd.Command(),
			bundlecmd.Command(),
			backupcmd.Command(),
			wizardcmd.Command(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("keystone %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Guided setup for a new hierarchy (start here)",
				Command:     "keystone wizard",
			},
			{
				Description: "Create the root of a hierarchy",
				Command:     "keystone network create-master headquarters",
			},
			{
				Description: "Issue a token down the hierarchy",
				Command:     "keystone network issue --issuer headquarters branch-office",
			},
			{
				Description: "Verify a token through every path",
				Command:     "keystone network verify branch-office --trace",
			},
			{
				Description: "Export a verification bundle for distribution",
				Command:     "keystone bundle export branch-office --archive",
			},
			{
				Description: "Snapshot the store, encrypted",
				Command:     "keystone backup create --encrypt",
			},
		},
	}
}
