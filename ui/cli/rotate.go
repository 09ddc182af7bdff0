// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toeirei/keyrot/internal/logging"
	"github.com/toeirei/keyrot/internal/profile"
	"github.com/toeirei/keyrot/internal/prompt"
	"github.com/toeirei/keyrot/internal/rotation"
	"github.com/toeirei/keyrot/internal/rotationlog"
)

func newRotateCmd(e *env) *cobra.Command {
	var opts rotation.Options
	cmd := &cobra.Command{
		Use:   "rotate <key> [key...]",
		Short: "Replace keys with freshly generated ones",
		Long: `Rotate one or more keys. For each key keyrot tests the current key against a
host that uses it, backs up the SSH config, generates a new key, archives the
old one, installs the new key at the same path and points every IdentityFile
line and connection profile that used the old key at the new one.

A failing key does not stop the keys after it. The command exits non-zero if
any key failed. Use --dry-run to print the plan without changing anything.`,
		Example: `  keyrot rotate id_rsa
  keyrot rotate work/id_deploy --type ed25519 --upload deploy@ci.example.com
  keyrot rotate id_rsa id_ecdsa --dry-run`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeKeyNames(e),
		RunE: func(cmd *cobra.Command, args []string) error {
			tools, err := e.toolset()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			wf := &rotation.Workflow{
				Keys:          e.keys,
				Vault:         e.vault,
				Config:        e.sshcfg,
				ConfigPath:    e.cfg.SSHConfigPath(),
				Tools:         tools,
				Confirm:       prompt.New(cmd.InOrStdin(), out, opts.Yes),
				Out:           out,
				Clock:         e.clock,
				WriteMetadata: e.cfg.Rotation.WriteMetadata,
			}

			openProfiles := e.openProfiles
			if opts.DryRun {
				openProfiles = e.openProfilesReadOnly
			}
			if store, err := openProfiles(); err != nil {
				logging.Warnf("profiles unavailable, profile references will not be updated: %v", err)
			} else {
				defer func() { _ = store.Close() }()
				wf.Profiles = profile.NewSyncer(store, e.resolver)
			}

			if !opts.DryRun {
				log, err := rotationlog.Open(e.cfg.RotationLogPath(), e.clock)
				if err != nil {
					return err
				}
				defer func() { _ = log.Close() }()
				wf.Log = log
			}

			summary := wf.RunBatch(cmd.Context(), args, opts)
			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprintln(out, summary.String())
			return summary.Err()
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Type, "type", "t", "", "Key type of the new key (ed25519, rsa, ecdsa); defaults to the current type")
	f.StringVarP(&opts.Comment, "comment", "C", "", "Comment of the new key; defaults to the current comment")
	f.IntVarP(&opts.Bits, "bits", "b", 0, "Key size for rsa (2048-16384) or ecdsa (256, 384, 521)")
	f.BoolVarP(&opts.DryRun, "dry-run", "n", false, "Print the plan without changing anything")
	f.BoolVarP(&opts.Yes, "yes", "y", false, "Do not ask for confirmation")
	f.BoolVar(&opts.SkipTest, "no-test", false, "Do not test the current key before rotating")
	f.BoolVar(&opts.IgnoreTestFailure, "ignore-test-failure", false, "Rotate even if the current key fails its connection test")
	f.BoolVar(&opts.TestNew, "test-new", false, "Test the new key before archiving the old one")
	f.BoolVar(&opts.NoBackup, "no-backup", false, "Do not back up the SSH config")
	f.BoolVar(&opts.Force, "force", false, "Overwrite an existing archived copy of the key")
	f.StringVar(&opts.Upload, "upload", "", "Comma separated [user@]host[:port] list to install the new public key on")
	return cmd
}
