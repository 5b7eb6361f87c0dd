// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package network

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/keystone-foundation/keystone/cmd/keystone/cli"
	"github.com/keystone-foundation/keystone/lib/keyring"
	"github.com/keystone-foundation/keystone/lib/store"
)

type initParams struct {
	Store string `flag:"store" desc:"store directory (default from config)"`
}

func initCommand() *cli.Command {
	var params initParams

	return &cli.Command{
		Name:    "init",
		Summary: "Initialize an empty token store",
		Description: `Create the store directory and its keys/ subdirectory. Idempotent:
running init on an existing store changes nothing.`,
		Usage: "keystone network init [flags]",
		Examples: []cli.Example{
			{
				Description: "Initialize the default store",
				Command:     "keystone network init",
			},
			{
				Description: "Initialize a store at an explicit location",
				Command:     "keystone network init --store ./trust",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("init", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}

			dir, err := resolveStore(params.Store)
			if err != nil {
				return err
			}
			logger := cli.NewCommandLogger().With("command", "network/init")

			// Opening both layers creates the directories.
			if _, err := store.Open(dir, logger); err != nil {
				return err
			}
			if _, err := keyring.Open(dir, logger); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "Initialized token store at %s\n", dir)
			return nil
		},
	}
}
