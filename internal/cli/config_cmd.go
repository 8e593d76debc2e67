// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/talks-tui/internal/config"
)

const configLongDesc string = `Inspect or create the config file.

show prints the effective configuration after the environment and flags
are applied, with the webhook URL masked. init writes the defaults to the
config file. path prints where the config file is read from.`

const configShortDesc string = "Inspect or create the config file"

type configCommander struct {
	root  *rootCommander
	force bool
}

func newConfigCmd(root *rootCommander) *cobra.Command {
	cmder := &configCommander{root: root}

	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.runInit(cmd)
		},
	}
	initCmd.Flags().BoolVarP(&cmder.force, "force", "f", false, "Overwrite an existing config file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprint(cmd.OutOrStdout(), cmder.root.cfg.String())
				return nil
			},
		},
		initCmd,
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), cmder.root.path)
				return nil
			},
		},
	)

	return cmd
}

func (c *configCommander) runInit(cmd *cobra.Command) error {
	path := c.root.path
	if _, err := os.Stat(path); err == nil && !c.force {
		return fmt.Errorf("%s already exists; use --force to overwrite", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := config.Save(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
