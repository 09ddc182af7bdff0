// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/toeirei/keyrot/internal/i18n"
	"github.com/toeirei/keyrot/internal/keystore"
	"github.com/toeirei/keyrot/internal/model"
	"github.com/toeirei/keyrot/internal/prompt"
)

// exportTimeFormat names default export bundles.
const exportTimeFormat = "20060102_150405"

func newArchiveCmd(e *env) *cobra.Command {
	var force, overwrite, yes bool
	cmd := &cobra.Command{
		Use:   "archive <key>",
		Short: "Move a key and its companions to the archive",
		Long: `Move a private key together with its .pub and .meta companions below the
archive directory, keeping its relative path. Keys still referenced by the SSH
config or a connection profile are only archived after confirmation or with
--force.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeKeyNames(e),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := e.keys.Resolve(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			refs, err := e.findReferences(cmd.Context(), h.Path)
			if err != nil {
				return err
			}
			if !refs.empty() && !force {
				if err := printReferences(out, refs); err != nil {
					return err
				}
				confirm := prompt.New(cmd.InOrStdin(), out, yes)
				ok, err := confirm.Confirm(i18n.T("archive.confirm_in_use", h.Name, len(refs.hosts), len(refs.profiles)))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s is referenced by %d host(s) and %d profile(s)",
						model.ErrConflictInUse, h.Name, len(refs.hosts), len(refs.profiles))
				}
			}

			entry, err := e.vault.Archive(h, overwrite)
			if err != nil {
				return fmt.Errorf("archive %s: %w", h.Name, err)
			}
			_, _ = fmt.Fprintln(out, i18n.T("archive.done", h.Name, entry.Key.Path))
			if !refs.empty() {
				_, _ = fmt.Fprintln(out, i18n.T("archive.dangling", len(refs.hosts)+len(refs.profiles)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Archive even if the key is still referenced")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing archived copy")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.AddCommand(newArchiveExportCmd(e))
	return cmd
}

func newArchiveExportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the archive as a zstd-compressed tar bundle",
		Long: `Bundle every archived key and SSH config backup into a .tar.zst file.
Without a file name the bundle is written to keyrot-archive-<timestamp>.tar.zst
in the current directory; "-" writes to standard output.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := fmt.Sprintf("keyrot-archive-%s.tar.zst", e.clock.Now().Format(exportTimeFormat))
			if len(args) == 1 {
				target = args[0]
			}

			var w io.Writer = cmd.OutOrStdout()
			if target != "-" {
				f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
				if err != nil {
					if os.IsExist(err) {
						return fmt.Errorf("%w: %s", model.ErrAlreadyExists, target)
					}
					return fmt.Errorf("create %s: %w", target, err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			n, err := e.vault.Export(w)
			if err != nil {
				return fmt.Errorf("export archive: %w", err)
			}
			if target != "-" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("export.done", n, target))
			}
			return nil
		},
	}
}

func newUnarchiveCmd(e *env) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "unarchive <key>",
		Short: "Restore an archived key to its original location",
		Long: `Move an archived key and its companions back to the same relative path in
the active key directory. An existing key at that path is only replaced with
--force.`,
		Args: cobra.ExactArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if err := e.setup(cmd); err != nil {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return keystore.ListActiveKeyNames(e.keys.ArchiveRoot()), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := e.vault.Unarchive(args[0], force)
			if err != nil {
				return fmt.Errorf("unarchive %s: %w", args[0], err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("unarchive.done", h.Name, h.Path))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing key at the original location")
	return cmd
}
