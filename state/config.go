package state

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// LocalCfg is the optional per-node configuration. Every field has a
// sensible default; a missing config file means all defaults.
type LocalCfg struct {
	// Interval between periodic vector broadcasts.
	Interval Duration `yaml:"interval,omitempty"`
	// TimeoutMultiplier scales Interval into the neighbour liveness
	// timeout.
	TimeoutMultiplier int `yaml:"timeout_multiplier,omitempty"`
	// LogPath, if set, mirrors the log stream to this file.
	LogPath string `yaml:"log_path,omitempty"`
}

func DefaultLocalCfg() LocalCfg {
	return LocalCfg{
		Interval:          Duration(DefaultUpdateInterval),
		TimeoutMultiplier: DefaultTimeoutMultiple,
	}
}

// LoadLocalCfg reads the YAML config at path, applying defaults for
// absent fields. An empty path yields the defaults.
func LoadLocalCfg(path string) (LocalCfg, error) {
	cfg := DefaultLocalCfg()
	if path == "" {
		return cfg, nil
	}
	file, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := ConfigValidator(&cfg); err != nil {
		return cfg, fmt.Errorf("validate %s: %w", path, err)
	}
	return cfg, nil
}

func ConfigValidator(cfg *LocalCfg) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", time.Duration(cfg.Interval))
	}
	if cfg.TimeoutMultiplier < 1 {
		return fmt.Errorf("timeout_multiplier must be at least 1, got %d", cfg.TimeoutMultiplier)
	}
	return nil
}

// UpdateInterval returns the periodic broadcast period.
func (c LocalCfg) UpdateInterval() time.Duration {
	return time.Duration(c.Interval)
}

// NeighborTimeout is how long a silent neighbour stays alive.
func (c LocalCfg) NeighborTimeout() time.Duration {
	return time.Duration(c.TimeoutMultiplier) * time.Duration(c.Interval)
}
