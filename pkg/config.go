package dirtscan

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-ini/ini"
)

// Config represents the .dirt/config file
type Config struct {
	configPath string
	ini        *ini.File
}

// ScanConfig represents scanner tuning configuration
type ScanConfig struct {
	Workers        int  // Worker pool size (0 = one per CPU)
	ShardFactor    int  // Shard fan-out multiplier per worker
	MinShardWeight int  // Floor on per-shard weight
	UntrackedCache bool // Default for the unchanged-directory fast path
}

// LoadConfig loads configuration from the .dirt/config file, creating it
// with defaults on first use.
func LoadConfig(repoDir string) (*Config, error) {
	configPath := filepath.Join(repoDir, ConfigFile)

	cfg := &Config{configPath: configPath}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg.ini = ini.Empty()
		if err := cfg.setDefaults(); err != nil {
			return nil, fmt.Errorf("failed to set default config: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	} else {
		iniFile, err := ini.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		cfg.ini = iniFile
	}

	return cfg, nil
}

// setDefaults sets default configuration values
func (c *Config) setDefaults() error {
	scanSection, err := c.ini.NewSection("scan")
	if err != nil {
		return fmt.Errorf("failed to create scan section: %w", err)
	}
	if _, err := scanSection.NewKey("workers", "0"); err != nil {
		return fmt.Errorf("failed to set default workers: %w", err)
	}
	if _, err := scanSection.NewKey("shard_factor", fmt.Sprintf("%d", DefaultShardFactor)); err != nil {
		return fmt.Errorf("failed to set default shard factor: %w", err)
	}
	if _, err := scanSection.NewKey("min_shard_weight", fmt.Sprintf("%d", DefaultMinShardWeight)); err != nil {
		return fmt.Errorf("failed to set default min shard weight: %w", err)
	}
	if _, err := scanSection.NewKey("untracked_cache", "true"); err != nil {
		return fmt.Errorf("failed to set default untracked cache: %w", err)
	}
	return nil
}

// Save writes the configuration back to disk
func (c *Config) Save() error {
	return c.ini.SaveTo(c.configPath)
}

// GetScanConfig returns the scanner tuning configuration, falling back to
// defaults for missing or unparseable keys.
func (c *Config) GetScanConfig() *ScanConfig {
	sc := &ScanConfig{
		Workers:        0,
		ShardFactor:    DefaultShardFactor,
		MinShardWeight: DefaultMinShardWeight,
		UntrackedCache: true,
	}

	section := c.ini.Section("scan")
	if key, err := section.GetKey("workers"); err == nil {
		sc.Workers = key.MustInt(sc.Workers)
	}
	if key, err := section.GetKey("shard_factor"); err == nil {
		sc.ShardFactor = key.MustInt(sc.ShardFactor)
	}
	if key, err := section.GetKey("min_shard_weight"); err == nil {
		sc.MinShardWeight = key.MustInt(sc.MinShardWeight)
	}
	if key, err := section.GetKey("untracked_cache"); err == nil {
		sc.UntrackedCache = key.MustBool(sc.UntrackedCache)
	}

	return sc
}

// Validate checks the scanner tuning configuration
func (sc *ScanConfig) Validate() error {
	if sc.Workers < 0 {
		return fmt.Errorf("invalid workers %d: must be >= 0", sc.Workers)
	}
	if sc.ShardFactor < 1 {
		return fmt.Errorf("invalid shard_factor %d: must be >= 1", sc.ShardFactor)
	}
	if sc.MinShardWeight < 1 {
		return fmt.Errorf("invalid min_shard_weight %d: must be >= 1", sc.MinShardWeight)
	}
	return nil
}

// Options converts the scan configuration into index Options, leaving the
// pool choice to the caller.
func (sc *ScanConfig) Options(pool WorkerPool) Options {
	return Options{
		Pool:           pool,
		ShardFactor:    sc.ShardFactor,
		MinShardWeight: sc.MinShardWeight,
	}
}
