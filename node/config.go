// Package node wires a configured distributor together: it opens the
// redemption record under the data directory, resolves the commitment root
// and hands back a ready claim.Distributor.
package node

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/holiman/uint256"

	"github.com/eth2030/merkledrop/core/types"
	"github.com/eth2030/merkledrop/log"
)

// Config holds all configuration for a distributor node.
type Config struct {
	// DataDir is the root directory for the redemption record.
	DataDir string `yaml:"datadir"`

	// InMemory keeps the redemption record in memory instead of DataDir.
	InMemory bool `yaml:"in_memory"`

	// Name and Version are the signing domain name and version.
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// ChainID is the decimal chain id bound into every signature.
	ChainID string `yaml:"chain_id"`

	// VerifyingContract is the distributor identity bound into every
	// signature.
	VerifyingContract string `yaml:"verifying_contract"`

	// Root is the 0x-prefixed commitment root. When empty the root is read
	// from Commitment.
	Root string `yaml:"root"`

	// Commitment is the path of a published commitment file, relative to
	// DataDir unless absolute.
	Commitment string `yaml:"commitment"`

	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogFormat selects the log handler (text, json).
	LogFormat string `yaml:"log_format"`

	// MetricsAddr is the listen address of the Prometheus /metrics
	// endpoint. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DataDir:   "merkledrop-data",
		Name:      "MerkleDrop",
		Version:   "1",
		ChainID:   "1",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.DataDir == "" && !c.InMemory {
		return errors.New("config: datadir must not be empty")
	}
	if c.Name == "" {
		return errors.New("config: name must not be empty")
	}
	if _, err := c.ParsedChainID(); err != nil {
		return err
	}
	if _, err := c.ParsedVerifyingContract(); err != nil {
		return err
	}
	if c.Root == "" && c.Commitment == "" {
		return errors.New("config: one of root or commitment must be set")
	}
	if c.Root != "" {
		if _, err := types.ParseHash(c.Root); err != nil {
			return fmt.Errorf("config: invalid root: %w", err)
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}

// ParsedChainID returns ChainID as a 256-bit integer.
func (c *Config) ParsedChainID() (*uint256.Int, error) {
	id, err := uint256.FromDecimal(c.ChainID)
	if err != nil {
		return nil, fmt.Errorf("config: invalid chain_id %q: %w", c.ChainID, err)
	}
	return id, nil
}

// ParsedVerifyingContract returns VerifyingContract as an address. An empty
// value is the zero address.
func (c *Config) ParsedVerifyingContract() (types.Address, error) {
	if c.VerifyingContract == "" {
		return types.Address{}, nil
	}
	addr, err := types.ParseAddress(c.VerifyingContract)
	if err != nil {
		return types.Address{}, fmt.Errorf("config: invalid verifying_contract: %w", err)
	}
	return addr, nil
}

// ResolvePath resolves a path relative to the data directory.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// RecordPath returns the bbolt file holding the redemption record.
func (c *Config) RecordPath() string {
	return c.ResolvePath("claims.db")
}

// InitDataDir creates the data directory if it does not exist.
func (c *Config) InitDataDir() error {
	if c.DataDir == "" {
		return errors.New("config: datadir must not be empty")
	}
	return os.MkdirAll(c.DataDir, 0o700)
}
