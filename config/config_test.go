package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, uint64(250), cfg.FeeBps)
	require.Equal(t, 256, cfg.PaymentHistoryCap)
	require.Equal(t, 512, cfg.ReviewCap)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
DataDir = "/var/lib/leasechain"
Env = "prod"
FeeBps = 500
ReviewCap = 64
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/leasechain", cfg.DataDir)
	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, uint64(500), cfg.FeeBps)
	require.Equal(t, 64, cfg.ReviewCap)
	// Untouched fields keep their defaults.
	require.Equal(t, 256, cfg.PaymentHistoryCap)
}

func TestLoadRejectsFeeAboveCeiling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("FeeBps = 1500\n"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateBounds(t *testing.T) {
	cfg := Default()
	cfg.FeeBps = 1000
	require.NoError(t, cfg.Validate())
	cfg.FeeBps = 1001
	require.Error(t, cfg.Validate())
	cfg = Default()
	cfg.PaymentHistoryCap = -1
	require.Error(t, cfg.Validate())
	cfg = Default()
	cfg.ReviewCap = -1
	require.Error(t, cfg.Validate())
}
