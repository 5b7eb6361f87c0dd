// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package network

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/keystone-foundation/keystone/cmd/keystone/cli"
	"github.com/keystone-foundation/keystone/lib/ref"
)

type createMasterParams struct {
	Store string `flag:"store" desc:"store directory (default from config)"`
}

func createMasterCommand() *cli.Command {
	var params createMasterParams

	return &cli.Command{
		Name:    "create-master",
		Summary: "Create the root token of a hierarchy",
		Description: `Create the self-signed master token. The master keypair is generated
and persisted under keys/. A store holds exactly one root: running
this against a store that already has one fails.`,
		Usage: "keystone network create-master <node-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Create the root of a new hierarchy",
				Command:     "keystone network create-master headquarters",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("create-master", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one node identifier, got %d", len(args))
			}
			id, err := ref.ParseNodeID(args[0])
			if err != nil {
				return err
			}

			logger := cli.NewCommandLogger().With("command", "network/create-master")
			n, err := open(params.Store, logger)
			if err != nil {
				return err
			}

			master, err := n.CreateMaster(id)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "Created master token for %s\n  hash: %s\n", master.NodeID, master.TokenHash)
			return nil
		},
	}
}
