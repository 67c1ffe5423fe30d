package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, "127.0.0.1:8681", cfg.ListenAddress)
	require.NotEmpty(t, cfg.LedgerName)
	require.NotEmpty(t, cfg.LedgerSymbol)

	// The generated file round-trips through Load.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
LedgerName = "Acme Preferred"
LedgerSymbol = "ACMP"
OwnerKeystore = "/keys/owner.json"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8681", cfg.ListenAddress)
	require.Equal(t, "./data", cfg.DataDir)
	require.Equal(t, "local", cfg.Environment)
	require.Equal(t, float64(600), cfg.RateLimitPerMin)
	require.Equal(t, 30, cfg.RateLimitBurst)
	require.Equal(t, filepath.Join("./data", "register"), cfg.DatabasePath())
}

func TestValidateRejectsMissingIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
LedgerSymbol = "ACMP"
OwnerKeystore = "/keys/owner.json"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	_, err := Load(path)
	require.ErrorContains(t, err, "LedgerName")
}
