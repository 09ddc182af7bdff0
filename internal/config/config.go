// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads keyrot settings from defaults, YAML files, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the complete keyrot configuration.
type Config struct {
	Keys     KeysConfig     `mapstructure:"keys" yaml:"keys"`
	SSH      SSHConfig      `mapstructure:"ssh" yaml:"ssh"`
	Profiles ProfilesConfig `mapstructure:"profiles" yaml:"profiles"`
	Tools    ToolsConfig    `mapstructure:"tools" yaml:"tools"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Language string         `mapstructure:"language" yaml:"language"`
}

type KeysConfig struct {
	Root       string `mapstructure:"root" yaml:"root"`
	ArchiveDir string `mapstructure:"archive_dir" yaml:"archive_dir"`
}

type SSHConfig struct {
	// Config is the SSH client configuration file. Empty means <keys.root>/config.
	Config string `mapstructure:"config" yaml:"config"`
}

type ProfilesConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // json, sqlite, postgres or mysql
	Path    string `mapstructure:"path" yaml:"path"`       // JSON store location
	DSN     string `mapstructure:"dsn" yaml:"dsn"`         // SQL store connection string
}

type ToolsConfig struct {
	Backend        string        `mapstructure:"backend" yaml:"backend"` // exec or native
	Keygen         string        `mapstructure:"keygen" yaml:"keygen"`
	SSH            string        `mapstructure:"ssh" yaml:"ssh"`
	CopyID         string        `mapstructure:"copy_id" yaml:"copy_id"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	StrictHostKeys bool          `mapstructure:"strict_host_keys" yaml:"strict_host_keys"`
}

type RotationConfig struct {
	LogFile       string `mapstructure:"log_file" yaml:"log_file"`
	WriteMetadata bool   `mapstructure:"write_metadata" yaml:"write_metadata"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Defaults returns the default settings as a viper key map.
func Defaults() map[string]any {
	root := "~/.ssh"
	if home, err := os.UserHomeDir(); err == nil {
		root = filepath.Join(home, ".ssh")
	}
	profiles := ""
	if dir, err := os.UserConfigDir(); err == nil {
		profiles = filepath.Join(dir, "keyrot", "profiles.json")
	}
	return map[string]any{
		"keys.root":               root,
		"keys.archive_dir":        "archived",
		"ssh.config":              "",
		"profiles.backend":        "json",
		"profiles.path":           profiles,
		"profiles.dsn":            "",
		"tools.backend":           "exec",
		"tools.keygen":            "ssh-keygen",
		"tools.ssh":               "ssh",
		"tools.copy_id":           "ssh-copy-id",
		"tools.connect_timeout":   "5s",
		"tools.strict_host_keys":  false,
		"rotation.log_file":       "key_rotation.log",
		"rotation.write_metadata": true,
		"log.level":               "info",
		"language":                "en",
	}
}

// SSHConfigPath returns the SSH client configuration file in use.
func (c Config) SSHConfigPath() string {
	if c.SSH.Config != "" {
		return c.SSH.Config
	}
	return filepath.Join(c.Keys.Root, "config")
}

// RotationLogPath returns the rotation audit log location.
func (c Config) RotationLogPath() string {
	if filepath.IsAbs(c.Rotation.LogFile) {
		return c.Rotation.LogFile
	}
	return filepath.Join(c.Keys.Root, c.Rotation.LogFile)
}

// GetConfigPath returns the full path for the configuration file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "keyrot")
		default:
			configDir = "/etc/keyrot"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "keyrot")
	}

	return filepath.Join(configDir, "keyrot.yaml"), nil
}

// LoadConfig builds a T from defaults, the first keyrot.yaml found (or the
// explicit file), KEYROT_* environment variables and the flags named in
// flagKeys (config key -> flag name) that exist on cmd.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, explicitFile string, flagKeys map[string]string) (T, string, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("keyrot")
	v.SetConfigType("yaml")
	if explicitFile != "" {
		v.SetConfigFile(explicitFile)
	}
	if userConfigPath, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// It's okay if the file is not found, but other errors are fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, "", err
		}
	}

	v.SetEnvPrefix("keyrot")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for key, flagName := range flagKeys {
			if f := cmd.Flags().Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return c, "", err
				}
			}
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, "", err
	}

	return c, v.ConfigFileUsed(), nil
}

// Marshal renders a configuration as YAML.
func Marshal[T any](c *T) ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteConfigFile writes c to the user (or system) configuration path.
func WriteConfigFile[T any](c *T, system bool) (string, error) {
	path, err := GetConfigPath(system)
	if err != nil {
		return "", err
	}
	return path, WriteConfigFileTo(c, path)
}

// WriteConfigFileTo writes c as YAML to path, creating parent directories.
func WriteConfigFileTo[T any](c *T, path string) error {
	data, err := Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	return os.WriteFile(path, data, 0o600)
}
