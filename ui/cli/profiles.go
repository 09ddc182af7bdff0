// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/toeirei/keyrot/internal/i18n"
	"github.com/toeirei/keyrot/internal/model"
	"github.com/toeirei/keyrot/internal/profile"
)

// withProfiles opens the profile store for the duration of fn.
func (e *env) withProfiles(fn func(*profile.Service) error) error {
	store, err := e.openProfiles()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(&profile.Service{Store: store})
}

// newProfileCmd is the root command for connection profile management.
func newProfileCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage saved connection profiles (list, show, add, remove)",
		Long: `Connection profiles are saved connections (alias, host, user, port and key).
keyrot updates the key of every profile that uses a rotated key.`,
	}
	cmd.AddCommand(newProfileListCmd(e), newProfileShowCmd(e), newProfileAddCmd(e), newProfileRemoveCmd(e))
	return cmd
}

func newProfileListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connection profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withProfiles(func(s *profile.Service) error {
				profiles, err := s.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list profiles: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(profiles) == 0 {
					_, _ = fmt.Fprintln(out, i18n.T("profile.empty"))
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "ALIAS\tHOST\tUSER\tPORT\tKEY")
				for _, p := range profiles {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", p.Alias, p.Hostname, p.Username, p.EffectivePort(), p.SSHKey)
				}
				return w.Flush()
			})
		},
	}
}

func newProfileShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <alias>",
		Short: "Show a connection profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withProfiles(func(s *profile.Service) error {
				p, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintf(w, "Alias:\t%s\n", p.Alias)
				_, _ = fmt.Fprintf(w, "Host:\t%s\n", p.Hostname)
				_, _ = fmt.Fprintf(w, "User:\t%s\n", p.Username)
				_, _ = fmt.Fprintf(w, "Port:\t%d\n", p.EffectivePort())
				_, _ = fmt.Fprintf(w, "Key:\t%s\n", p.SSHKey)
				return w.Flush()
			})
		},
	}
}

func newProfileAddCmd(e *env) *cobra.Command {
	var p model.ConnectionProfile
	cmd := &cobra.Command{
		Use:   "add <alias>",
		Short: "Add a connection profile",
		Example: `  keyrot profile add db --host db.example.com --user ops --key ~/.ssh/id_ed25519
  keyrot profile add backup --host 10.0.0.5 --port 2222`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Alias = args[0]
			return e.withProfiles(func(s *profile.Service) error {
				added, err := s.Add(cmd.Context(), p)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("profile.added", added.Alias, added.Target()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&p.Hostname, "host", "", "Host name or address (required)")
	cmd.Flags().StringVarP(&p.Username, "user", "u", "", "Login user")
	cmd.Flags().IntVarP(&p.Port, "port", "p", model.DefaultSSHPort, "SSH port")
	cmd.Flags().StringVarP(&p.SSHKey, "key", "k", "", "Private key used for the connection")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}

func newProfileRemoveCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <alias>",
		Aliases: []string{"rm"},
		Short:   "Remove a connection profile",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withProfiles(func(s *profile.Service) error {
				if err := s.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("profile.removed", args[0]))
				return nil
			})
		},
	}
}
