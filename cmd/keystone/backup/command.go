// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"

	libbackup "github.com/keystone-foundation/keystone/lib/backup"
	"github.com/keystone-foundation/keystone/lib/config"

	"github.com/keystone-foundation/keystone/cmd/keystone/cli"
)

// Command returns the "backup" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "backup",
		Summary: "Snapshot and restore token stores",
		Description: `Create snapshots of a token store — token records plus key material —
and restore them. Snapshots are zstd-compressed and can be encrypted
with a passphrase for off-machine storage.`,
		Subcommands: []*cli.Command{
			createCommand(),
			restoreCommand(),
		},
	}
}

type createParams struct {
	Store   string `flag:"store" desc:"store directory (default from config)"`
	Dest    string `flag:"dest,d" desc:"snapshot destination directory (default from config)"`
	Encrypt bool   `flag:"encrypt,e" desc:"encrypt the snapshot with a passphrase"`
}

func createCommand() *cli.Command {
	var params createParams

	return &cli.Command{
		Name:    "create",
		Summary: "Create a snapshot of a token store",
		Usage:   "keystone backup create [flags]",
		Examples: []cli.Example{
			{
				Description: "Snapshot the default store",
				Command:     "keystone backup create",
			},
			{
				Description: "Encrypted snapshot for off-machine storage",
				Command:     "keystone backup create --encrypt --dest /mnt/usb",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("create", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
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
				destDir = cfg.Paths.Backups
			}
			if err := os.MkdirAll(destDir, 0700); err != nil {
				return err
			}

			passphrase := ""
			if params.Encrypt || cfg.Backup.Encrypt {
				passphrase, err = cli.ReadPassphrase("Snapshot passphrase: ", true)
				if err != nil {
					return err
				}
				if passphrase == "" {
					return fmt.Errorf("empty passphrase")
				}
			}

			stamp := time.Now().UTC().Format("20060102-150405")
			snapshotPath := filepath.Join(destDir, stamp+libbackup.Suffix)
			if err := libbackup.Create(storeDir, snapshotPath, passphrase); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Snapshot written to %s\n", snapshotPath)

			if cfg.Backup.Keep > 0 {
				pruned, err := pruneSnapshots(destDir, cfg.Backup.Keep)
				if err != nil {
					return err
				}
				if pruned > 0 {
					fmt.Fprintf(os.Stdout, "Pruned %d old snapshot(s)\n", pruned)
				}
			}
			return nil
		},
	}
}

// pruneSnapshots removes the oldest snapshots beyond keep. Snapshot
// filenames embed their creation time, so lexicographic order is
// chronological.
func pruneSnapshots(dir string, keep int) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var names []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), libbackup.Suffix) {
			names = append(names, entry.Name())
		}
	}
	if len(names) <= keep {
		return 0, nil
	}
	sort.Strings(names)

	pruned := 0
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

type restoreParams struct {
	Dest string `flag:"dest,d" desc:"directory to restore into (required, must be empty)"`
}

func restoreCommand() *cli.Command {
	var params restoreParams

	return &cli.Command{
		Name:    "restore",
		Summary: "Restore a snapshot into a fresh store directory",
		Description: `Restore a snapshot. The destination must be empty or absent —
restoring over a live store is refused. Encrypted snapshots prompt
for their passphrase.`,
		Usage: "keystone backup restore <snapshot-file> --dest <dir>",
		Examples: []cli.Example{
			{
				Description: "Restore a snapshot",
				Command:     "keystone backup restore 20260825-090000.snapshot --dest ./recovered",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("restore", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one snapshot file, got %d arguments", len(args))
			}
			if params.Dest == "" {
				return fmt.Errorf("--dest is required")
			}
			snapshotPath := args[0]

			encrypted, err := libbackup.Encrypted(snapshotPath)
			if err != nil {
				return err
			}
			passphrase := ""
			if encrypted {
				passphrase, err = cli.ReadPassphrase("Snapshot passphrase: ", false)
				if err != nil {
					return err
				}
			}

			if err := libbackup.Restore(snapshotPath, params.Dest, passphrase); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Restored snapshot into %s\n", params.Dest)
			return nil
		},
	}
}
