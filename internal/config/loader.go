package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a run configuration from the given YAML file path,
// applying the max_attempts default when unset.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a run config in standard locations and loads
// the first one found. Search order: ./forgebot.yaml, ~/.forgebot/config.yaml
func LoadDefault() (*RunConfig, error) {
	candidates := []string{"forgebot.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".forgebot", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return nil, fmt.Errorf("no run config found (searched: %v)", candidates)
}

// applyDefaults fills in config-wide defaults not set by the YAML source.
func applyDefaults(cfg *RunConfig) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.StoreRoot == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.StoreRoot = filepath.Join(home, ".forgebot", "runs")
		} else {
			cfg.StoreRoot = ".forgebot/runs"
		}
	}
}
