package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
ethereum_node:
  protocol: https://
  host: mainnet.infura.io/v3/abc
  port: ""
contracts:
  dapp:
    - 0xdapp1
  non_dapp:
    - 0xfactory
block_range:
  min_block: 100
  max_block: 200
extraction:
  normal_transactions: true
  internal_transactions: false
  transactions_by_events: false
  etherscan_api_key: REALKEY123
output:
  dapp:
    events: true
    calls: true
  non_dapp:
    events: true
`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndValidates(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Retry.Attempts)
	require.Equal(t, 1500, cfg.Retry.DelayMS)
	require.GreaterOrEqual(t, cfg.Workers, 1)
	require.Equal(t, "https://mainnet.infura.io/v3/abc:", cfg.NodeURL())
}

func TestValidateRejectsEmptySeedSet(t *testing.T) {
	cfg := &Config{}
	cfg.EthereumNode.Host = "host"
	cfg.Extraction.NormalTransactions = true
	cfg.Extraction.EtherscanAPIKey = "REALKEY"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty dapp seed set")
	}
}

func TestValidateRejectsAllExtractionSourcesDisabled(t *testing.T) {
	cfg := &Config{}
	cfg.Contracts.DApp = []string{"0x1"}
	cfg.EthereumNode.Host = "host"
	cfg.Extraction.EtherscanAPIKey = "REALKEY"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error when no extraction source is enabled")
	}
}

func TestValidateRejectsPlaceholderAPIKey(t *testing.T) {
	cfg := &Config{}
	cfg.Contracts.DApp = []string{"0x1"}
	cfg.EthereumNode.Host = "host"
	cfg.Extraction.NormalTransactions = true
	cfg.Extraction.EtherscanAPIKey = "ETHERSCAN_API_KEY"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for placeholder api key")
	}
}
