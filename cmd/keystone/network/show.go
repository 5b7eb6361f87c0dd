// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package network

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/keystone-foundation/keystone/cmd/keystone/cli"
	libnetwork "github.com/keystone-foundation/keystone/lib/network"
	"github.com/keystone-foundation/keystone/lib/ref"
)

type showParams struct {
	cli.JSONOutput
	Store string `flag:"store" desc:"store directory (default from config)"`
}

func showCommand() *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Show a node's token",
		Usage:   "keystone network show <node-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Show a token as JSON",
				Command:     "keystone network show branch-office --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("show", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one node identifier, got %d", len(args))
			}
			id, err := ref.ParseNodeID(args[0])
			if err != nil {
				return err
			}

			logger := cli.NewCommandLogger().With("command", "network/show")
			n, err := open(params.Store, logger)
			if err != nil {
				return err
			}

			t, ok := n.Get(id)
			if !ok {
				return fmt.Errorf("%w: %s", libnetwork.ErrTokenNotFound, id)
			}

			if done, err := params.EmitJSON(t); done {
				return err
			}

			fmt.Fprintf(os.Stdout, "node:      %s\n", t.NodeID)
			fmt.Fprintf(os.Stdout, "level:     %d\n", t.HierarchyLevel)
			if t.IsRoot() {
				fmt.Fprintf(os.Stdout, "issuer:    (root)\n")
			} else {
				fmt.Fprintf(os.Stdout, "issuer:    %s\n", t.IssuerID)
			}
			fmt.Fprintf(os.Stdout, "master:    %s\n", t.MasterID)
			fmt.Fprintf(os.Stdout, "issued at: %s\n", t.Timestamp)
			fmt.Fprintf(os.Stdout, "hash:      %s\n", t.TokenHash)
			fmt.Fprintf(os.Stdout, "data:      %s\n", t.TokenData)

			fmt.Fprintf(os.Stdout, "paths:     %s\n", strings.Join(t.Paths(), ", "))
			return nil
		},
	}
}
