package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/providers"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Network != NetworkStandalone {
		t.Errorf("expected standalone, got %s", cfg.Network)
	}
	if cfg.Remote() {
		t.Error("standalone must not be remote")
	}
	if cfg.CompatibleVersion != providers.DefaultCompatibleVersion {
		t.Errorf("unexpected compatible version %s", cfg.CompatibleVersion)
	}
	if cfg.EnableTimeout != providers.DefaultEnableTimeout {
		t.Errorf("unexpected enable timeout %s", cfg.EnableTimeout)
	}
	if cfg.Identity != bboard.DefaultPrivateStateKey {
		t.Errorf("unexpected identity %s", cfg.Identity)
	}
	if cfg.StatePath != "" {
		t.Errorf("standalone keeps private state in memory, got %s", cfg.StatePath)
	}
}

func TestLoad_DevnetPreset(t *testing.T) {
	t.Setenv("BBOARD_NETWORK", NetworkDevnet)
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConnectorAddress != DefaultDevnetAddress {
		t.Errorf("expected %s, got %s", DefaultDevnetAddress, cfg.ConnectorAddress)
	}
	if cfg.StatePath != "bboard-devnet.db" {
		t.Errorf("unexpected state path %s", cfg.StatePath)
	}
	if !cfg.Remote() {
		t.Error("devnet must be remote")
	}
}

func TestLoad_EnvOverridesPreset(t *testing.T) {
	t.Setenv("BBOARD_NETWORK", NetworkDevnet)
	t.Setenv("BBOARD_CONNECTOR_ADDRESS", "10.0.0.1:9000")
	t.Setenv("BBOARD_CONNECTOR_ENABLETIMEOUT", "2s")
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConnectorAddress != "10.0.0.1:9000" {
		t.Errorf("unexpected address %s", cfg.ConnectorAddress)
	}
	if cfg.EnableTimeout != 2*time.Second {
		t.Errorf("unexpected enable timeout %s", cfg.EnableTimeout)
	}
}

func TestLoad_TestnetNeedsAddress(t *testing.T) {
	t.Setenv("BBOARD_NETWORK", NetworkTestnet)
	_, err := Load(New(), "")
	if err == nil || !strings.Contains(err.Error(), KeyConnectorAddress) {
		t.Fatalf("expected a missing address error, got %v", err)
	}
}

func TestLoad_UnknownNetwork(t *testing.T) {
	t.Setenv("BBOARD_NETWORK", "mainnet")
	if _, err := Load(New(), ""); err == nil {
		t.Fatal("expected an error for an unknown network")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bboard.yaml")
	data := `
network: testnet
connector:
  address: connector.example:443
privateState:
  path: /tmp/board.db
  scoped: true
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Network != NetworkTestnet || cfg.ConnectorAddress != "connector.example:443" {
		t.Errorf("unexpected network config %+v", cfg)
	}
	if cfg.EnableTimeout != 30*time.Second {
		t.Errorf("expected the testnet enable timeout, got %s", cfg.EnableTimeout)
	}
	if !cfg.Scoped || cfg.StatePath != "/tmp/board.db" || cfg.LogLevel != "debug" {
		t.Errorf("unexpected file values %+v", cfg)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("BBOARD_CONNECTOR_POLLINTERVAL", "0s")
	if _, err := Load(New(), ""); err == nil {
		t.Fatal("expected an error for a zero poll interval")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("BBOARD_LOG_LEVEL=trace\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BBOARD_LOG_LEVEL", "")
	os.Unsetenv("BBOARD_LOG_LEVEL")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "trace" {
		t.Errorf("expected the .env level, got %s", cfg.LogLevel)
	}
}
