// Package config loads run configuration from .docsync.yaml with sensible
// defaults; flags override file values in the CLI layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	ConfigFile = ".docsync.yaml"

	// DocsyncDir holds the cache database and run state, relative to the
	// project root.
	DocsyncDir = ".docsync"

	// SummaryFile is the root aggregated summary document.
	SummaryFile = "DOCS.md"
)

type Config struct {
	Model       string   `yaml:"model"`
	Concurrency int      `yaml:"concurrency"`
	Retries     int      `yaml:"retries"`
	RequestRate float64  `yaml:"request_rate"` // capability calls per second
	ChunkBytes  int      `yaml:"chunk_bytes"`
	Exclude     []string `yaml:"exclude"`
}

func Default() *Config {
	return &Config{
		Model:       "",
		Concurrency: 4,
		Retries:     2,
		RequestRate: 5,
		ChunkBytes:  0, // aggregator default
	}
}

// Load reads .docsync.yaml from the project root when present, otherwise
// returns defaults.
func Load(rootPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(rootPath, ConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFile, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ConfigFile, err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return cfg, nil
}
