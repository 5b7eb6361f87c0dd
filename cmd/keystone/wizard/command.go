// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

package wizard

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/keystone-foundation/keystone/cmd/keystone/cli"
	"github.com/keystone-foundation/keystone/lib/config"
)

type wizardParams struct {
	Store string `flag:"store" desc:"store directory (default from config)"`
}

// Command returns the "wizard" command.
func Command() *cli.Command {
	var params wizardParams

	return &cli.Command{
		Name:    "wizard",
		Summary: "Guided setup for a new token hierarchy",
		Description: `Interactive setup: choose a store directory, create the master
token, and issue the first node tokens. Every action is persisted
immediately, exactly as the individual network commands would.`,
		Usage: "keystone wizard [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("wizard", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}

			storeDir := params.Store
			if storeDir == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				storeDir = cfg.Paths.Store
			}

			logger := cli.NewCommandLogger().With("command", "wizard")
			model := New(storeDir, logger)

			final, err := tea.NewProgram(model).Run()
			if err != nil {
				return err
			}
			if m, ok := final.(Model); ok && m.Err() != nil {
				return m.Err()
			}
			return nil
		},
	}
}
