package dirtscan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	repoDir := t.TempDir()

	cfg, err := LoadConfig(repoDir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(repoDir, ConfigFile)); err != nil {
		t.Errorf("Config file should exist after first load: %v", err)
	}

	sc := cfg.GetScanConfig()
	if sc.Workers != 0 {
		t.Errorf("Default workers = %d, expected 0", sc.Workers)
	}
	if sc.ShardFactor != DefaultShardFactor {
		t.Errorf("Default shard_factor = %d, expected %d", sc.ShardFactor, DefaultShardFactor)
	}
	if sc.MinShardWeight != DefaultMinShardWeight {
		t.Errorf("Default min_shard_weight = %d, expected %d", sc.MinShardWeight, DefaultMinShardWeight)
	}
	if !sc.UntrackedCache {
		t.Error("Default untracked_cache should be true")
	}
	if err := sc.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestLoadConfigReadsExisting(t *testing.T) {
	repoDir := t.TempDir()
	content := "[scan]\nworkers = 3\nshard_factor = 4\nmin_shard_weight = 32\nuntracked_cache = false\n"
	if err := os.WriteFile(filepath.Join(repoDir, ConfigFile), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(repoDir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	sc := cfg.GetScanConfig()
	if sc.Workers != 3 || sc.ShardFactor != 4 || sc.MinShardWeight != 32 || sc.UntrackedCache {
		t.Errorf("Unexpected scan config: %+v", sc)
	}

	opts := sc.Options(nil)
	if opts.ShardFactor != 4 || opts.MinShardWeight != 32 {
		t.Errorf("Options conversion lost tuning values: %+v", opts)
	}
}

func TestLoadConfigPartial(t *testing.T) {
	repoDir := t.TempDir()
	// Missing and unparseable keys fall back to defaults.
	content := "[scan]\nworkers = many\nshard_factor = 4\n"
	if err := os.WriteFile(filepath.Join(repoDir, ConfigFile), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(repoDir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	sc := cfg.GetScanConfig()
	if sc.Workers != 0 {
		t.Errorf("Unparseable workers should fall back to 0, got %d", sc.Workers)
	}
	if sc.ShardFactor != 4 {
		t.Errorf("shard_factor = %d, expected 4", sc.ShardFactor)
	}
	if sc.MinShardWeight != DefaultMinShardWeight {
		t.Errorf("Missing min_shard_weight should default to %d, got %d",
			DefaultMinShardWeight, sc.MinShardWeight)
	}
}

func TestScanConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		sc    ScanConfig
		valid bool
	}{
		{"defaults", ScanConfig{0, DefaultShardFactor, DefaultMinShardWeight, true}, true},
		{"explicit workers", ScanConfig{8, 2, 1, false}, true},
		{"negative workers", ScanConfig{-1, 16, 512, true}, false},
		{"zero shard factor", ScanConfig{0, 0, 512, true}, false},
		{"zero floor", ScanConfig{0, 16, 0, true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sc.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid, got %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("Expected a validation error")
			}
		})
	}
}
