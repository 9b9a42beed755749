package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration for the profiler viewer.
// It can be populated from CLI flags, config files, or both.
type Config struct {
	// Comment field for user documentation (ignored by the application)
	Comment string `yaml:"comment,omitempty"`

	// Event source selection: "demo" or "otlp-file"
	Source string `yaml:"source,omitempty"`

	// OTLPDir is the directory of OTLP/JSON trace files to tail when
	// the source is "otlp-file".
	OTLPDir string `yaml:"otlp_dir,omitempty"`

	// PollIntervalMs is the collector's polling cadence in milliseconds.
	PollIntervalMs int `yaml:"poll_interval_ms,omitempty"`

	// DemoSeed seeds the synthetic workload for reproducible traces.
	DemoSeed int64 `yaml:"demo_seed,omitempty"`

	// Web UI configuration
	WebUIHost string `yaml:"webui_host,omitempty"`
	WebUIPort int    `yaml:"webui_port,omitempty"`

	// Logging configuration
	Verbose bool `yaml:"verbose,omitempty"`
}

// DefaultConfig returns a Config with sensible default values:
// demo source, 100ms polling, localhost web UI on port 4870.
func DefaultConfig() *Config {
	return &Config{
		Source:         "demo",
		PollIntervalMs: 100,
		DemoSeed:       1,
		WebUIHost:      "127.0.0.1",
		WebUIPort:      4870,
		Verbose:        false,
	}
}

// LoadConfigFromFile loads configuration from a YAML file at the given path.
// It returns an error if the file cannot be read or parsed.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &config, nil
}

// FindProjectConfig searches for a .flamedeck.yaml config file.
// It starts in the current directory and walks up looking for the file,
// stopping when it finds a .git directory (project root) or reaches root.
func FindProjectConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	for {
		configPath := filepath.Join(dir, ".flamedeck.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		// Stop at the repo root even if no config was found.
		gitPath := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", os.ErrNotExist
}

// GlobalConfigPath returns the path to the global config file.
// This is ~/.config/flamedeck/config.yaml
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "flamedeck", "config.yaml")
}

// MergeConfigs merges two configs with the overlay taking precedence.
// Fields in overlay override corresponding fields in base.
// Returns a new Config with the merged values.
func MergeConfigs(base, overlay *Config) *Config {
	if base == nil {
		base = &Config{}
	}
	if overlay == nil {
		return base
	}

	merged := *base

	if overlay.Source != "" {
		merged.Source = overlay.Source
	}
	if overlay.OTLPDir != "" {
		merged.OTLPDir = overlay.OTLPDir
	}
	if overlay.PollIntervalMs > 0 {
		merged.PollIntervalMs = overlay.PollIntervalMs
	}
	if overlay.DemoSeed != 0 {
		merged.DemoSeed = overlay.DemoSeed
	}
	if overlay.WebUIHost != "" {
		merged.WebUIHost = overlay.WebUIHost
	}
	if overlay.WebUIPort > 0 {
		merged.WebUIPort = overlay.WebUIPort
	}
	if overlay.Verbose {
		merged.Verbose = overlay.Verbose
	}

	return &merged
}

// LoadEffectiveConfig loads the effective configuration by merging:
// 1. Built-in defaults
// 2. Global config file (if exists)
// 3. Project config file (if exists), or the explicit file from configPath
// Later sources override earlier ones.
func LoadEffectiveConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	// Global config is optional; ignore errors.
	if globalPath := GlobalConfigPath(); globalPath != "" {
		if globalCfg, err := LoadConfigFromFile(globalPath); err == nil {
			config = MergeConfigs(config, globalCfg)
		}
	}

	if configPath == "" {
		// Project config is optional too, but parse failures in one that
		// exists should surface.
		if projectPath, err := FindProjectConfig(); err == nil {
			projectCfg, err := LoadConfigFromFile(projectPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load project config: %w", err)
			}
			config = MergeConfigs(config, projectCfg)
		}
	} else {
		explicitCfg, err := LoadConfigFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = MergeConfigs(config, explicitCfg)
	}

	return config, nil
}
