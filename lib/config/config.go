// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the treasury service.
type Config struct {
	// Paths configures directory and file locations.
	Paths PathsConfig `yaml:"paths"`

	// Service configures the Unix socket surface.
	Service ServiceConfig `yaml:"service"`

	// Ledger configures runtime ledger limits.
	Ledger LedgerConfig `yaml:"ledger"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for Custodia data.
	Root string `yaml:"root"`

	// State is where runtime state is stored: the journal
	// database and the capability token signing keypair.
	State string `yaml:"state"`

	// Genesis is the path to the genesis JSONC document.
	Genesis string `yaml:"genesis"`
}

// ServiceConfig configures the treasury service socket.
type ServiceConfig struct {
	// SocketPath is the Unix socket path for the service.
	// Default: /run/custodia/treasury.sock
	SocketPath string `yaml:"socket_path"`

	// TokenTTL is how long minted capability tokens stay valid.
	// Default: 5m
	TokenTTL string `yaml:"token_ttl"`
}

// LedgerConfig configures runtime ledger limits.
type LedgerConfig struct {
	// MaxReasonLength bounds proposal reason text in bytes.
	// Default: 256
	MaxReasonLength int `yaml:"max_reason_length"`

	// JournalPoolSize is the SQLite connection pool size for the
	// journal store. Default: 4
	JournalPoolSize int `yaml:"journal_pool_size"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file; the config file is still
// required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "custodia")

	return &Config{
		Paths: PathsConfig{
			Root:    defaultRoot,
			State:   filepath.Join(defaultRoot, "state"),
			Genesis: filepath.Join(defaultRoot, "genesis.jsonc"),
		},
		Service: ServiceConfig{
			SocketPath: "/run/custodia/treasury.sock",
			TokenTTL:   "5m",
		},
		Ledger: LedgerConfig{
			MaxReasonLength: 256,
			JournalPoolSize: 4,
		},
	}
}

// Load loads configuration from the CUSTODIA_CONFIG environment
// variable. There are no fallbacks: if CUSTODIA_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("CUSTODIA_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("CUSTODIA_CONFIG environment variable not set; " +
			"set it to the path of your custodia.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment
// variables do not override config values; the only expansion
// performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"CUSTODIA_ROOT": c.Paths.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["CUSTODIA_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Paths.Genesis = expandVars(c.Paths.Genesis, vars)
	c.Service.SocketPath = expandVars(c.Service.SocketPath, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
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
	if c.Paths.State == "" {
		errs = append(errs, fmt.Errorf("paths.state is required"))
	}
	if c.Paths.Genesis == "" {
		errs = append(errs, fmt.Errorf("paths.genesis is required"))
	}
	if c.Service.SocketPath == "" {
		errs = append(errs, fmt.Errorf("service.socket_path is required"))
	}
	if _, err := c.TokenTTL(); err != nil {
		errs = append(errs, err)
	}
	if c.Ledger.MaxReasonLength < 0 {
		errs = append(errs, fmt.Errorf("ledger.max_reason_length must be >= 0"))
	}
	if c.Ledger.JournalPoolSize < 1 {
		errs = append(errs, fmt.Errorf("ledger.journal_pool_size must be >= 1"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// TokenTTL parses the configured capability token lifetime.
func (c *Config) TokenTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.Service.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("service.token_ttl: %w", err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("service.token_ttl must be positive, got %s", ttl)
	}
	return ttl, nil
}

// JournalPath returns the path of the journal database inside the
// state directory.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.State, "journal.db")
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Root, c.Paths.State} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
