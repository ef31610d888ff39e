package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"positionGuard/internal/ports"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
}

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bingx_config.json")

	cfg, err := Load(path)
	assert.Nil(t, cfg)
	assert.True(t, errors.Is(err, ErrConfigCreated))

	written, err := read(path)
	require.NoError(t, err)
	assert.Equal(t, PlaceholderAPIKey, written.APIKey)
	assert.True(t, written.DryRun)
	assert.True(t, written.Testnet)
	assert.Equal(t, 60, written.CheckInterval)
	assert.Equal(t, 50, written.RiskManagement.MaxDailyTrades)
	assert.Equal(t, 5, written.RiskManagement.ErrorThreshold)
}

func TestLoad_AppliesDefaultsToPartialDocument(t *testing.T) {
	t.Setenv("BINGX_API_KEY", "")
	t.Setenv("BINGX_SECRET_KEY", "")
	path := filepath.Join(t.TempDir(), "cfg.json")
	writeFile(t, path, `{"api_key":"k","secret_key":"s","disabled_symbols":["BTCUSDT"],"risk_management":{"max_daily_trades":7}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.APIKey)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, 0.01, cfg.ProfitThreshold)
	assert.Equal(t, 0.5, cfg.PartialClosePercent)
	assert.Equal(t, 0.005, cfg.StopLossOffset)
	assert.Equal(t, []string{"BTCUSDT"}, cfg.DisabledSymbols)
	assert.Equal(t, 7, cfg.RiskManagement.MaxDailyTrades)
	assert.Equal(t, 1000.0, cfg.RiskManagement.MaxPositionValue)
	assert.Equal(t, 5, cfg.RiskManagement.ErrorThreshold)
	assert.Equal(t, "data/position_journal.db", cfg.JournalPath)
}

func TestLoad_EnvOverridesCredentials(t *testing.T) {
	t.Setenv("BINGX_API_KEY", "env-key")
	t.Setenv("BINGX_SECRET_KEY", "env-secret")
	path := filepath.Join(t.TempDir(), "cfg.json")
	writeFile(t, path, `{"api_key":"file-key","secret_key":"file-secret"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "env-secret", cfg.SecretKey)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	writeFile(t, path, `{"api_key": `)

	_, err := Load(path)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConfigCreated))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate(), "defaults are valid in dry run")

	cfg.DryRun = false
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
	assert.Contains(t, err.Error(), "api_key and secret_key")

	cfg = Default()
	cfg.PartialClosePercent = 1
	cfg.CheckInterval = 0
	cfg.Notifications.Enabled = true
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partial_close_percent")
	assert.Contains(t, err.Error(), "check_interval")
	assert.Contains(t, err.Error(), "notifications enabled")
}

func TestSetEmergencyStop_Persists(t *testing.T) {
	t.Setenv("BINGX_API_KEY", "")
	t.Setenv("BINGX_SECRET_KEY", "")
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, Save(path, Default()))

	store := NewStore(path)
	require.NoError(t, SetEmergencyStop(path, true))
	on, err := store.EmergencyStop()
	require.NoError(t, err)
	assert.True(t, on)

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.True(t, cfg.EmergencyStop)
	assert.Equal(t, PlaceholderAPIKey, cfg.APIKey, "other keys survive the toggle")

	require.NoError(t, SetEmergencyStop(path, false))
	on, err = store.EmergencyStop()
	require.NoError(t, err)
	assert.False(t, on)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestStore_MissingFileDoesNotRecreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.json")
	_, err := NewStore(path).Load()
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestSetEmergencyStop_MissingFile(t *testing.T) {
	err := SetEmergencyStop(filepath.Join(t.TempDir(), "nope.json"), true)
	require.Error(t, err)
}
