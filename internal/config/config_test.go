package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const adminHex = "0x00000000000000000000000000000000000000a1"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMergesDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "serve"

[pool]
admins = ["`+adminHex+`"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	// Unset sections keep their defaults.
	require.Equal(t, uint32(250), cfg.Pool.DefaultFeeBps)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
mode = "serve"

[pool]
admins = ["`+adminHex+`"]
`)

	t.Setenv("WAGERPOOL_SERVER_PORT", "9100")
	t.Setenv("WAGERPOOL_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("WAGERPOOL_POOL_DEFAULT_FEE_BPS", "500")
	t.Setenv("WAGERPOOL_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	require.Equal(t, uint32(500), cfg.Pool.DefaultFeeBps)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "cluster"
	cfg.Pool.Admins = []string{"not-an-address"}
	cfg.Pool.DefaultFeeBps = 5000
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown mode")
	require.Contains(t, err.Error(), "invalid admin address")
	require.Contains(t, err.Error(), "default_fee_bps")
	require.Contains(t, err.Error(), "server: port")
}

func TestValidateRequiresAdmins(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "at least one admin")

	cfg.Pool.Admins = []string{adminHex}
	require.NoError(t, cfg.Validate())
}

func TestValidateFullModeNeedsStores(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "full"
	cfg.Pool.Admins = []string{adminHex}
	cfg.Postgres.Host = ""
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "postgres: host")
	require.Contains(t, err.Error(), "s3: bucket")
}

func TestValidateSeedBalances(t *testing.T) {
	cfg := Defaults()
	cfg.Pool.Admins = []string{adminHex}
	cfg.Pool.SeedBalances = map[string]int64{"bogus": 100}

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "seed_balances")
}
