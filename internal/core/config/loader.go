package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Load reads the configuration document from a JSON file (YAML is accepted
// for .yaml/.yml paths). Environment variables in the content are expanded
// before parsing.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg AppConfig
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.ScannerPoolInterval == 0 {
		cfg.ScannerPoolInterval = 300
	}
	if cfg.WalletPoolInterval == 0 {
		cfg.WalletPoolInterval = 300
	}
	if cfg.UnreachableAfter == 0 {
		cfg.UnreachableAfter = 3
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "registry.json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

// validate fails fast on malformed chain entries instead of failing lazily
// at first use.
func validate(cfg *AppConfig) error {
	if cfg.URL == "" {
		return fmt.Errorf("missing sla endpoint url")
	}
	for chainID, chain := range cfg.Chains {
		if err := chain.Validate(chainID); err != nil {
			return fmt.Errorf("invalid chain config: %w", err)
		}
	}
	return nil
}
