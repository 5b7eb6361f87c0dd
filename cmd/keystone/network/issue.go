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

type issueParams struct {
	Store  string `flag:"store" desc:"store directory (default from config)"`
	Issuer string `flag:"issuer,i" desc:"issuing node identifier (required)"`
	Data   string `flag:"data" desc:"opaque token payload (default token_for_<id>)"`
}

func issueCommand() *cli.Command {
	var params issueParams

	return &cli.Command{
		Name:    "issue",
		Summary: "Issue a token to a new node",
		Description: `Issue a token for a new node, linked to the issuer's token by hash.
The token receives master and issuer signatures when the respective
private keys are available; when one is missing the corresponding
verification path is simply absent. A keypair for the new node is
created so it can issue tokens of its own.`,
		Usage: "keystone network issue --issuer <node-id> <new-node-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Issue a token from the root",
				Command:     "keystone network issue --issuer headquarters branch-office",
			},
			{
				Description: "Issue a token with a custom payload",
				Command:     "keystone network issue --issuer branch-office till-7 --data 'role=till'",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("issue", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one node identifier, got %d", len(args))
			}
			if params.Issuer == "" {
				return fmt.Errorf("--issuer is required")
			}
			issuerID, err := ref.ParseNodeID(params.Issuer)
			if err != nil {
				return fmt.Errorf("invalid --issuer: %w", err)
			}
			newID, err := ref.ParseNodeID(args[0])
			if err != nil {
				return err
			}

			logger := cli.NewCommandLogger().With("command", "network/issue")
			n, err := open(params.Store, logger)
			if err != nil {
				return err
			}

			issued, err := n.Issue(issuerID, newID, params.Data)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "Issued token for %s\n  issuer: %s\n  level: %d\n  hash: %s\n",
				issued.NodeID, issued.IssuerID, issued.HierarchyLevel, issued.TokenHash)
			return nil
		},
	}
}
