// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the root command, loads the configuration and wires the
// services every subcommand shares.

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toeirei/keyrot/buildvars"
	"github.com/toeirei/keyrot/internal/clock"
	"github.com/toeirei/keyrot/internal/config"
	"github.com/toeirei/keyrot/internal/i18n"
	"github.com/toeirei/keyrot/internal/keypath"
	"github.com/toeirei/keyrot/internal/keystore"
	"github.com/toeirei/keyrot/internal/logging"
	"github.com/toeirei/keyrot/internal/model"
	"github.com/toeirei/keyrot/internal/profile"
	"github.com/toeirei/keyrot/internal/sshconfig"
	"github.com/toeirei/keyrot/internal/sshtool"
	"github.com/toeirei/keyrot/internal/vault"
)

var version = "dev"   // this will be set by the linker
var gitCommit = "dev" // set at build time with the short commit SHA
var buildDate = ""    // set at build time (RFC3339)

// flagKeys binds persistent flags to the configuration keys they override.
var flagKeys = map[string]string{
	"keys.root":        "root",
	"ssh.config":       "ssh-config",
	"profiles.backend": "profiles-backend",
	"profiles.path":    "profiles",
	"profiles.dsn":     "profiles-dsn",
	"tools.backend":    "tools",
	"language":         "lang",
}

// env is the state shared by the commands of one invocation.
type env struct {
	cfgFile  string // --config
	verbose  bool
	cfg      config.Config
	cfgUsed  string // file viper read, if any
	clock    clock.Clock
	resolver keypath.Resolver
	keys     *keystore.Store
	vault    *vault.Vault
	sshcfg   *sshconfig.Syncer

	// newToolset builds the tool backends; tests replace it.
	newToolset func(sshtool.Options) (sshtool.Toolset, error)
}

// setup loads the configuration and builds the key services.
func (e *env) setup(cmd *cobra.Command) error {
	if e.cfgFile != "" {
		if _, err := os.Stat(e.cfgFile); err != nil {
			return fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
		}
	}
	cfg, used, err := config.LoadConfig[config.Config](cmd, config.Defaults(), e.cfgFile, flagKeys)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	e.cfg = cfg
	e.cfgUsed = used

	if e.verbose {
		logging.SetDebug(true)
	} else if err := logging.SetLevel(cfg.Log.Level); err != nil {
		logging.Warnf("%v; using info", err)
	}
	if !slices.Contains(i18n.Supported(), cfg.Language) {
		logging.Warnf("no translations for language %q; using en", cfg.Language)
	}
	i18n.Init(cfg.Language)

	home, _ := os.UserHomeDir()
	if strings.TrimSpace(cfg.Keys.Root) == "" {
		return fmt.Errorf("%w: keys.root is empty", model.ErrInvalidInput)
	}
	root, err := expandPath(cfg.Keys.Root, home)
	if err != nil {
		return err
	}
	e.cfg.Keys.Root = root
	if cfg.SSH.Config != "" {
		if e.cfg.SSH.Config, err = expandPath(cfg.SSH.Config, home); err != nil {
			return err
		}
	}
	if cfg.Profiles.Path != "" {
		if e.cfg.Profiles.Path, err = expandPath(cfg.Profiles.Path, home); err != nil {
			return err
		}
	}

	e.resolver = keypath.Resolver{Home: home, Root: root}
	e.keys = keystore.New(root)
	if cfg.Keys.ArchiveDir != "" {
		e.keys.ArchiveDir = cfg.Keys.ArchiveDir
	}
	e.vault = &vault.Vault{Keys: e.keys, Clock: e.clock}
	e.sshcfg = &sshconfig.Syncer{Resolver: e.resolver, Clock: e.clock}
	logging.Debugf("key root %s, ssh config %s, config file %q", root, e.cfg.SSHConfigPath(), used)
	return nil
}

// expandPath makes a configured path absolute, honouring a leading "~".
func expandPath(p, home string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Abs(p)
}

// openProfiles opens the configured profile store.
func (e *env) openProfiles() (profile.Store, error) {
	p := e.cfg.Profiles
	return profile.Open(p.Backend, p.Path, p.DSN)
}

// openProfilesReadOnly opens the profile store without creating or
// changing anything.
func (e *env) openProfilesReadOnly() (profile.Store, error) {
	p := e.cfg.Profiles
	return profile.OpenReadOnly(p.Backend, p.Path, p.DSN)
}

// toolset builds the configured tool backends.
func (e *env) toolset() (sshtool.Toolset, error) {
	t := e.cfg.Tools
	newToolset := e.newToolset
	if newToolset == nil {
		newToolset = sshtool.NewToolset
	}
	return newToolset(sshtool.Options{
		Backend:        t.Backend,
		Keygen:         t.Keygen,
		SSH:            t.SSH,
		CopyID:         t.CopyID,
		ConnectTimeout: t.ConnectTimeout,
		HostKeys: sshtool.HostKeys{
			Strict:     t.StrictHostKeys,
			KnownHosts: filepath.Join(e.keys.Root, "known_hosts"),
		},
	})
}

// Execute runs the CLI entrypoint. The cmd/keyrot main package should call
// this function and handle process exit.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates and configures a new root cobra command. Every call
// returns an independent tree so tests can run commands in isolation.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&env{clock: clock.System})
}

func newRootCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyrot",
		Short: "keyrot archives, restores and rotates local SSH keys.",
		Long: `keyrot manages the SSH key pairs in your key directory.
It lists and archives keys, restores archived ones and rotates keys in use:
a new key is generated, the old one is archived, and every IdentityFile line
in the SSH config and every saved connection profile that referenced the old
key is pointed at the new one.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup(cmd)
		},
	}
	cmd.Version = compositeVersion()

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&e.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&e.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/keyrot/keyrot.yaml)")
	pf.String("root", "", "Key directory (default ~/.ssh)")
	pf.String("ssh-config", "", "SSH client config file (default <root>/config)")
	pf.String("profiles", "", "Connection profile file for the json backend")
	pf.String("profiles-backend", "", `Profile store backend ("json", "sqlite", "postgres", "mysql")`)
	pf.String("profiles-dsn", "", "Connection string for SQL profile backends")
	pf.String("tools", "", `Tool backend ("exec" runs ssh-keygen/ssh/ssh-copy-id, "native" works in-process)`)
	pf.String("lang", "", `Output language ("en", "de")`)

	cmd.AddCommand(
		newListCmd(e),
		newShowCmd(e),
		newRefsCmd(e),
		newArchiveCmd(e),
		newUnarchiveCmd(e),
		newRotateCmd(e),
		newProfileCmd(e),
		newConfigCmd(e),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			v, c, d := resolveBuildVersion(nil)
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "version: %s\n", v)
			_, _ = fmt.Fprintf(out, "commit: %s\n", c)
			if d != "" {
				_, _ = fmt.Fprintf(out, "built: %s\n", d)
			}
		},
	}
}

func compositeVersion() string {
	v, c, d := resolveBuildVersion(nil)
	composite := v
	if c != "" && c != "dev" {
		composite = composite + " (" + c + ")"
	}
	if d != "" {
		composite = composite + " built: " + d
	}
	return composite
}

// resolveBuildVersion computes the best-available version, commit and build
// date for the running binary. If `info` is nil, it reads build info from
// the runtime.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := buildvars.VersionOrDefault(version)
	resolvedCommit := buildvars.CommitOrDefault(gitCommit)
	resolvedDate := buildvars.DateOrDefault(buildDate)

	if info == nil {
		if local, ok := debug.ReadBuildInfo(); ok {
			info = local
		}
	}

	if info != nil {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			resolvedVersion = info.Main.Version
		}
		// When built as a dependency, Main does not carry our version.
		if (resolvedVersion == "dev" || resolvedVersion == "(devel)") && info.Deps != nil {
			for _, dep := range info.Deps {
				if dep.Path == "github.com/toeirei/keyrot" && dep.Version != "" {
					resolvedVersion = dep.Version
					break
				}
			}
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" {
					resolvedDate = s.Value
				}
			}
		}
	}

	if resolvedVersion == "dev" && gitCommit != "dev" && gitCommit != "" {
		resolvedVersion = gitCommit
	}

	return resolvedVersion, resolvedCommit, resolvedDate
}
