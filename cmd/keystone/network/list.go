// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package network

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/keystone-foundation/keystone/cmd/keystone/cli"
	"github.com/keystone-foundation/keystone/lib/ref"
)

type listParams struct {
	cli.JSONOutput
	Store string `flag:"store" desc:"store directory (default from config)"`
}

// listEntry is a single entry in the JSON output.
type listEntry struct {
	NodeID ref.NodeID `json:"node_id"`
	Level  int        `json:"hierarchy_level"`
	Issuer string     `json:"issuer,omitempty"`
	Hash   string     `json:"token_hash"`
	Paths  []string   `json:"verification_paths"`
}

func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List all tokens in the store",
		Usage:   "keystone network list [flags]",
		Examples: []cli.Example{
			{
				Description: "List tokens in the default store",
				Command:     "keystone network list",
			},
			{
				Description: "List tokens as JSON",
				Command:     "keystone network list --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}

			logger := cli.NewCommandLogger().With("command", "network/list")
			n, err := open(params.Store, logger)
			if err != nil {
				return err
			}

			entries := make([]listEntry, 0, n.Len())
			for _, t := range n.List() {
				entry := listEntry{
					NodeID: t.NodeID,
					Level:  t.HierarchyLevel,
					Hash:   t.TokenHash,
					Paths:  t.Paths(),
				}
				if !t.IssuerID.IsZero() {
					entry.Issuer = t.IssuerID.String()
				}
				entries = append(entries, entry)
			}

			if done, err := params.EmitJSON(entries); done {
				return err
			}

			if len(entries) == 0 {
				fmt.Fprintf(os.Stdout, "No tokens in %s\n", n.Dir())
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(writer, "NODE\tLEVEL\tISSUER\tPATHS")
			for _, entry := range entries {
				issuer := entry.Issuer
				if issuer == "" {
					issuer = "(root)"
				}
				fmt.Fprintf(writer, "%s\t%d\t%s\t%s\n",
					entry.NodeID, entry.Level, issuer, strings.Join(entry.Paths, ","))
			}
			if err := writer.Flush(); err != nil {
				return err
			}

			if skipped := n.Skipped(); len(skipped) > 0 {
				fmt.Fprintf(os.Stdout, "\n%d corrupt token file(s) skipped at load\n", len(skipped))
			}
			return nil
		},
	}
}
