// Copyright 2026 The Keystone Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Keystone commands.
//
// Configuration is loaded from a single file specified by:
//   - KEYSTONE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery beyond the built-in
// defaults. This ensures deterministic, auditable configuration with
// no hidden overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the configuration for Keystone.
type Config struct {
	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Backup configures snapshot creation defaults.
	Backup BackupConfig `yaml:"backup"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Keystone data.
	Root string `yaml:"root"`

	// Store is the token store directory: per-node token files plus
	// the keys/ subdirectory.
	Store string `yaml:"store"`

	// Bundles is where distribution bundles are exported.
	Bundles string `yaml:"bundles"`

	// Backups is where backup snapshots are written.
	Backups string `yaml:"backups"`
}

// BackupConfig configures snapshot creation defaults.
type BackupConfig struct {
	// Encrypt requires a passphrase for every snapshot when true.
	// Unencrypted snapshots contain private key material in the
	// clear, exactly like the store directory they capture.
	Encrypt bool `yaml:"encrypt"`

	// Keep is how many snapshots to retain per store. Zero means
	// keep everything.
	Keep int `yaml:"keep"`
}

// Default returns the default configuration. These defaults make every
// command usable without a config file; the file exists to relocate
// directories and tighten backup policy.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".local", "share", "keystone")

	return &Config{
		Paths: PathsConfig{
			Root:    defaultRoot,
			Store:   filepath.Join(defaultRoot, "store"),
			Bundles: filepath.Join(defaultRoot, "bundles"),
			Backups: filepath.Join(defaultRoot, "backups"),
		},
		Backup: BackupConfig{
			Encrypt: false,
			Keep:    0,
		},
	}
}

// Load loads configuration from the KEYSTONE_CONFIG environment
// variable, falling back to defaults when it is unset.
func Load() (*Config, error) {
	configPath := os.Getenv("KEYSTONE_CONFIG")
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and ${KEYSTONE_ROOT} in paths, for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"KEYSTONE_ROOT": c.Paths.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["KEYSTONE_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.Store = expandVars(c.Paths.Store, vars)
	c.Paths.Bundles = expandVars(c.Paths.Bundles, vars)
	c.Paths.Backups = expandVars(c.Paths.Backups, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Paths.Store == "" {
		errs = append(errs, fmt.Errorf("paths.store is required"))
	}
	if c.Backup.Keep < 0 {
		errs = append(errs, fmt.Errorf("backup.keep cannot be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Root, c.Paths.Store, c.Paths.Bundles, c.Paths.Backups} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
