package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("INFURA_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "7420", cfg.ClientSettings.Port)
	require.True(t, cfg.ClientSettings.LoopbackOnly)
	require.Equal(t, "rpc", cfg.Wallet.Kind)
	require.Equal(t, uint64(10_000), cfg.History.MaxBlockRange)
	require.Equal(t, "localhost", cfg.EthNetworks.DefaultNetwork)

	local := cfg.EthNetworks.Networks["localhost"]
	require.Equal(t, uint64(31337), local.ChainID)
	require.Equal(t, "localhost", local.Name)
	require.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", local.Registry)

	// The Infura slot has no URL without a key and is dropped.
	sepolia := cfg.EthNetworks.Networks["sepolia"]
	require.Len(t, sepolia.RPCs, 1)
	require.Equal(t, "PublicNode", sepolia.RPCs[0].Name)
}

func TestLoadInjectsInfuraKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("INFURA_API_KEY", "abc123")

	cfg, err := Load("")
	require.NoError(t, err)

	sepolia := cfg.EthNetworks.Networks["sepolia"]
	require.Equal(t, "Infura", sepolia.RPCs[0].Name)
	require.Equal(t, "https://sepolia.infura.io/v3/abc123", sepolia.RPCs[0].URL)
}

func TestLoadExplicitFileOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("INFURA_API_KEY", "")

	path := filepath.Join(t.TempDir(), "drt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
Session:
  reconnectOnNetworkChange: true
Ethereum:
  networks:
    localhost:
      token: "e7f1725e7734ce288f8367e1bb143e90bb3f0512"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Session.ReconnectOnNetworkChange)
	require.Equal(t, "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512", cfg.EthNetworks.Networks["localhost"].Token)
	require.Equal(t, uint64(31337), cfg.EthNetworks.Networks["localhost"].ChainID)
}

func TestLoadRejectsBadAddress(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
Ethereum:
  networks:
    localhost:
      registry: "0x1234"
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DRT_WALLET_KIND", "keystore")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "keystore", cfg.Wallet.Kind)
}
