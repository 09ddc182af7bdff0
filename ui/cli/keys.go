// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"github.com/toeirei/keyrot/internal/i18n"
	"github.com/toeirei/keyrot/internal/keystore"
	"github.com/toeirei/keyrot/internal/logging"
	"github.com/toeirei/keyrot/internal/model"
	"github.com/toeirei/keyrot/internal/profile"
	"github.com/toeirei/keyrot/internal/sshkey"
)

// clipboardWrite is replaced in tests.
var clipboardWrite = clipboard.WriteAll

// completeKeyNames completes key-name arguments from the active key tree.
func completeKeyNames(e *env) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if err := e.setup(cmd); err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var out []string
		for _, name := range keystore.ListActiveKeyNames(e.keys.Root) {
			if strings.HasPrefix(name, toComplete) {
				out = append(out, name)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}

func newListCmd(e *env) *cobra.Command {
	var archived bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the private keys below the key root",
		Long: `Display every private key in the key directory with its type, permissions
and companions. Use --archived to include keys moved to the archive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := e.keys.List(keystore.ListOptions{IncludeArchived: archived})
			if err != nil {
				return fmt.Errorf("failed to list keys: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				_, _ = fmt.Fprintln(out, i18n.T("list.empty", e.keys.Root))
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tTYPE\tPERMISSIONS\tPUBLIC\tMETA\tSTATE")
			for _, k := range keys {
				state := "active"
				if k.Archived {
					state = "archived"
				}
				if k.Encrypted {
					state += ",encrypted"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					k.Name, k.Algorithm, k.Permissions, yesNo(k.HasPublic), yesNo(k.HasMeta), state)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&archived, "archived", false, "Include archived keys")
	return cmd
}

func newShowCmd(e *env) *cobra.Command {
	var copyPub bool
	cmd := &cobra.Command{
		Use:               "show <key>",
		Short:             "Show details of a key",
		Long:              `Display the type, fingerprint, size, comment and public key of a key.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeKeyNames(e),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := e.keys.Resolve(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "Name:\t%s\n", h.Name)
			_, _ = fmt.Fprintf(w, "Path:\t%s\n", h.Path)
			_, _ = fmt.Fprintf(w, "Type:\t%s\n", h.Algorithm)
			_, _ = fmt.Fprintf(w, "Permissions:\t%s\n", h.Permissions)
			_, _ = fmt.Fprintf(w, "Encrypted:\t%s\n", yesNo(h.Encrypted))

			var pub string
			if h.HasPublic {
				pub, err = keystore.ReadPublicKey(h.PublicPath())
				if err != nil {
					return fmt.Errorf("read public key of %s: %w", h.Name, err)
				}
				if fp, ferr := sshkey.Fingerprint(pub); ferr == nil {
					_, _ = fmt.Fprintf(w, "Fingerprint:\t%s\n", fp)
				}
				if bits, berr := sshkey.BitSize(pub); berr == nil && bits > 0 {
					_, _ = fmt.Fprintf(w, "Bits:\t%d\n", bits)
				}
				if _, _, comment, perr := sshkey.Parse(pub); perr == nil && comment != "" {
					_, _ = fmt.Fprintf(w, "Comment:\t%s\n", comment)
				}
			}
			if h.HasMeta {
				if meta, merr := keystore.ReadMetadata(h.Path); merr == nil {
					_, _ = fmt.Fprintf(w, "Created:\t%s\n", meta.CreatedAt.Format("2006-01-02 15:04:05"))
					if meta.RotatedFrom != "" {
						_, _ = fmt.Fprintf(w, "Rotated from:\t%s\n", meta.RotatedFrom)
					}
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if pub == "" {
				_, _ = fmt.Fprintln(out, i18n.T("show.no_public", h.Name))
				return nil
			}
			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprintln(out, pub)
			if copyPub {
				if err := clipboardWrite(pub); err != nil {
					return fmt.Errorf("copy public key to clipboard: %w", err)
				}
				_, _ = fmt.Fprintln(out, i18n.T("show.copied"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&copyPub, "copy", false, "Copy the public key to the clipboard")
	return cmd
}

// references collects the config hosts and profiles pointing at keyPath.
// A profile store that cannot be opened or read is reported and skipped.
type references struct {
	hosts    []string
	profiles []model.ConnectionProfile
}

func (r references) empty() bool { return len(r.hosts) == 0 && len(r.profiles) == 0 }

func (e *env) findReferences(ctx context.Context, keyPath string) (references, error) {
	var refs references
	hosts, err := e.sshcfg.FindHostsUsingKey(e.cfg.SSHConfigPath(), keyPath)
	if err != nil {
		return refs, err
	}
	refs.hosts = hosts

	store, err := e.openProfiles()
	if err != nil {
		logging.Warnf("profiles unavailable: %v", err)
		return refs, nil
	}
	defer func() { _ = store.Close() }()
	found, err := profile.NewSyncer(store, e.resolver).FindProfilesUsingKey(ctx, keyPath)
	if err != nil {
		logging.Warnf("profiles unavailable: %v", err)
		return refs, nil
	}
	refs.profiles = found
	return refs, nil
}

func printReferences(out io.Writer, refs references) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KIND\tNAME\tTARGET")
	for _, h := range refs.hosts {
		_, _ = fmt.Fprintf(w, "host\t%s\t\n", h)
	}
	for _, p := range refs.profiles {
		_, _ = fmt.Fprintf(w, "profile\t%s\t%s\n", p.Alias, p.Target())
	}
	return w.Flush()
}

func newRefsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:               "refs <key>",
		Short:             "Show the SSH config hosts and profiles using a key",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeKeyNames(e),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := e.keys.Resolve(args[0])
			if err != nil {
				return err
			}
			refs, err := e.findReferences(cmd.Context(), h.Path)
			if err != nil {
				return err
			}
			if refs.empty() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), i18n.T("refs.none", h.Name))
				return nil
			}
			return printReferences(cmd.OutOrStdout(), refs)
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
