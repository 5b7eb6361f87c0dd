// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package bundle

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/keystone-foundation/keystone/cmd/keystone/cli"
	libbundle "github.com/keystone-foundation/keystone/lib/bundle"
	"github.com/keystone-foundation/keystone/lib/config"
	libnetwork "github.com/keystone-foundation/keystone/lib/network"
	"github.com/keystone-foundation/keystone/lib/ref"
)

// Command returns the "bundle" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "bundle",
		Summary: "Export and check distribution bundles",
		Description: `Build distribution bundles: the file set a node hands to an external
verifier, containing the token record, the master public key, and a
manifest of BLAKE3 digests.`,
		Subcommands: []*cli.Command{
			exportCommand(),
			verifyCommand(),
		},
	}
}

type exportParams struct {
	Store   string `flag:"store" desc:"store directory (default from config)"`
	Dest    string `flag:"dest,d" desc:"destination directory (default from config)"`
	Archive bool   `flag:"archive" desc:"also pack the bundle into a .tar.lz4 archive"`
}

func exportCommand() *cli.Command {
	var params exportParams

	return &cli.Command{
		Name:    "export",
		Summary: "Export a distribution bundle for a node",
		Usage:   "keystone bundle export <node-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Export a bundle into the configured bundle directory",
				Command:     "keystone bundle export branch-office",
			},
			{
				Description: "Export and pack for transfer",
				Command:     "keystone bundle export branch-office --archive --dest ./out",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("export", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one node identifier, got %d", len(args))
			}
			id, err := ref.ParseNodeID(args[0])
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			storeDir := params.Store
			if storeDir == "" {
				storeDir = cfg.Paths.Store
			}
			destDir := params.Dest
			if destDir == "" {
				destDir = cfg.Paths.Bundles
			}

			logger := cli.NewCommandLogger().With("command", "bundle/export")
			n, err := libnetwork.Open(storeDir, logger)
			if err != nil {
				return err
			}

			dir, err := libbundle.Export(n, id, destDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Exported bundle to %s\n", dir)

			if params.Archive {
				archivePath := dir + libbundle.ArchiveSuffix
				if err := libbundle.Pack(dir, archivePath); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Packed archive at %s\n", archivePath)
			}
			return nil
		},
	}
}

type bundleVerifyParams struct {
	cli.JSONOutput
}

func verifyCommand() *cli.Command {
	var params bundleVerifyParams

	return &cli.Command{
		Name:    "verify",
		Summary: "Check a bundle's manifest digests",
		Description: `Recompute the BLAKE3 digest of every file listed in a bundle's
manifest. Accepts either a bundle directory or a packed .tar.lz4
archive (unpacked to a temporary directory first).

Exits 0 when every digest matches and 1 otherwise.`,
		Usage: "keystone bundle verify <bundle-dir-or-archive> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("verify", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected a bundle directory or archive, got %d arguments", len(args))
			}
			path := args[0]

			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			dir := path
			if !info.IsDir() {
				tempDir, err := os.MkdirTemp("", "keystone-bundle-*")
				if err != nil {
					return err
				}
				defer os.RemoveAll(tempDir)
				dir, err = libbundle.Unpack(path, tempDir)
				if err != nil {
					return err
				}
			}

			manifest, err := libbundle.Verify(dir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "bundle verification failed: %v\n", err)
				return &cli.ExitError{Code: 1}
			}

			if done, err := params.EmitJSON(manifest); done {
				return err
			}
			fmt.Fprintf(os.Stdout, "Bundle for %s verified: %d file(s) intact\n",
				manifest.NodeID, len(manifest.Files))
			return nil
		},
	}
}
