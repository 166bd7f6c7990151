// Package config loads the structured configuration document described in
// spec.md §6. It follows the teacher's internal/config package in shape
// (load, validate, default) but nests the document the way the Python
// original's config.py / transform_config does (ethereum_node, contracts,
// block_range, extraction, output.dapp/non_dapp, misc) instead of the
// teacher's flat single-contract-list layout.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	yaml "gopkg.in/yaml.v2"
)

// StreamFilters holds the output filters for one DApp/non-DApp side: one
// boolean per output stream (events, calls, delegatecalls, zero-value calls,
// creations). The assembler applies them when routing rows into streams;
// every row is decoded regardless of these settings.
type StreamFilters struct {
	Events         bool `yaml:"events"`
	Calls          bool `yaml:"calls"`
	Delegatecalls  bool `yaml:"delegatecalls"`
	ZeroValueCalls bool `yaml:"zero_value_calls"`
	Creations      bool `yaml:"creations"`
}

type nodeConfig struct {
	Protocol string `yaml:"protocol"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
}

type contractsConfig struct {
	DApp    []string `yaml:"dapp"`
	NonDApp []string `yaml:"non_dapp"`
}

type blockRangeConfig struct {
	MinBlock uint64 `yaml:"min_block"`
	MaxBlock uint64 `yaml:"max_block"`
}

type extractionConfig struct {
	NormalTransactions   bool   `yaml:"normal_transactions"`
	InternalTransactions bool   `yaml:"internal_transactions"`
	TransactionsByEvents bool   `yaml:"transactions_by_events"`
	EtherscanAPIKey      string `yaml:"etherscan_api_key"`
}

type outputConfig struct {
	DApp    StreamFilters `yaml:"dapp"`
	NonDApp StreamFilters `yaml:"non_dapp"`
}

type miscConfig struct {
	SensitiveEvents bool   `yaml:"sensitive_events"`
	LogFolder       string `yaml:"log_folder"`
	CustomABIPath   string `yaml:"custom_abi_path"`
}

type retryConfig struct {
	Attempts int `yaml:"attempts"`
	DelayMS  int `yaml:"delay_ms"`
}

// Config is the fully parsed, defaulted and validated configuration document.
type Config struct {
	EthereumNode nodeConfig       `yaml:"ethereum_node"`
	Contracts    contractsConfig  `yaml:"contracts"`
	BlockRange   blockRangeConfig `yaml:"block_range"`
	Extraction   extractionConfig `yaml:"extraction"`
	Output       outputConfig     `yaml:"output"`
	Misc         miscConfig       `yaml:"misc"`
	Retry        retryConfig      `yaml:"retry"`
	Workers      int              `yaml:"workers"`
}

// NodeURL assembles the JSON-RPC endpoint URL per spec.md §6.
func (c *Config) NodeURL() string {
	return fmt.Sprintf("%s%s:%s", c.EthereumNode.Protocol, c.EthereumNode.Host, c.EthereumNode.Port)
}

// Load reads, defaults and validates the configuration file at path.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = 5
	}
	if cfg.Retry.DelayMS == 0 {
		cfg.Retry.DelayMS = 1500
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
		if cfg.Workers < 1 {
			cfg.Workers = 1
		}
	}
}

// Validate enforces the ConfigError conditions named in spec.md §7/§8:
// empty seed set, all extraction sources disabled, placeholder API key.
// It is exported so the API server can apply the same rules to
// request-built configs without reading from disk.
func Validate(cfg *Config) error {
	if len(cfg.Contracts.DApp) == 0 {
		return fmt.Errorf("contracts.dapp: seed contract set must not be empty")
	}
	if cfg.EthereumNode.Host == "" {
		return fmt.Errorf("ethereum_node.host is required")
	}
	if !cfg.Extraction.NormalTransactions && !cfg.Extraction.InternalTransactions && !cfg.Extraction.TransactionsByEvents {
		return fmt.Errorf("extraction: at least one of normal_transactions, internal_transactions, transactions_by_events must be enabled")
	}
	if cfg.Extraction.EtherscanAPIKey == "" || cfg.Extraction.EtherscanAPIKey == "ETHERSCAN_API_KEY" {
		return fmt.Errorf("extraction.etherscan_api_key: provide a real Etherscan API key")
	}
	return nil
}
