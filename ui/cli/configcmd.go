// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/toeirei/keyrot/internal/config"
	"github.com/toeirei/keyrot/internal/i18n"
	"github.com/toeirei/keyrot/internal/model"
)

func newConfigCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialise the keyrot configuration",
	}
	cmd.AddCommand(newConfigShowCmd(e), newConfigInitCmd(e))
	return cmd
}

func newConfigShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Marshal(&e.cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if e.cfgUsed != "" {
				_, _ = fmt.Fprintf(out, "# %s\n", e.cfgUsed)
			}
			_, err = out.Write(data)
			return err
		},
	}
}

func newConfigInitCmd(e *env) *cobra.Command {
	var system, force bool
	cmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write the effective configuration to a config file",
		Long: `Write the effective configuration (defaults merged with environment and
flags) to the user config file, the system config file with --system, or the
given file. An existing file is only replaced with --force.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				p, err := config.GetConfigPath(system)
				if err != nil {
					return err
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%w: %s (use --force to replace it)", model.ErrAlreadyExists, path)
			}
			if err := config.WriteConfigFileTo(&e.cfg, path); err != nil {
				return fmt.Errorf("%w: write %s: %v", model.ErrConfigIO, path, err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("config.written", path))
			return nil
		},
	}
	cmd.Flags().BoolVar(&system, "system", false, "Write the system-wide config file")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing file")
	return cmd
}
