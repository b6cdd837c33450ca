package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15, cfg.Server.ReadTimeoutSec)
	assert.Equal(t, 60, cfg.Server.IdleTimeoutSec)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowOrigins)
	assert.Equal(t, 10.0, cfg.Gateway.DailyBudgetUSD)
	assert.Equal(t, 200.0, cfg.Gateway.MonthlyBudgetUSD)
	assert.Equal(t, 6000, cfg.Gateway.MaxSafeCloudTokens)
	assert.Equal(t, 30, cfg.Sync.DebounceSeconds)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.Equal(t, 300, cfg.Device.PairingCodeTTLSec)
	assert.Equal(t, "./vault", cfg.Device.StatePath)
}

func TestApplyDefaults_DoesNotOverrideExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = "9999"
	cfg.Gateway.DailyBudgetUSD = 42.0
	cfg.applyDefaults()

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 42.0, cfg.Gateway.DailyBudgetUSD)
}

func TestApplyEnvOverrides_ReadsEnvironment(t *testing.T) {
	os.Setenv("PORT", "6000")
	os.Setenv("WIZARD_LOCAL_ONLY", "true")
	os.Setenv("GATEWAY_DAILY_BUDGET_USD", "25.5")
	os.Setenv("DISPATCH_ALLOWLIST", "ls, cat ,grep")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("WIZARD_LOCAL_ONLY")
		os.Unsetenv("GATEWAY_DAILY_BUDGET_USD")
		os.Unsetenv("DISPATCH_ALLOWLIST")
	}()

	cfg := &Config{}
	cfg.applyEnvOverrides()

	assert.Equal(t, "6000", cfg.Server.Port)
	assert.True(t, cfg.Server.LocalOnly)
	assert.Equal(t, 25.5, cfg.Gateway.DailyBudgetUSD)
	assert.Equal(t, []string{"ls", "cat", "grep"}, cfg.Dispatch.AllowlistOnly)
}

func TestApplyEnvOverrides_VaultRootMapsToDeviceStatePath(t *testing.T) {
	os.Setenv("VAULT_ROOT", "/tmp/wizard-vault")
	defer os.Unsetenv("VAULT_ROOT")

	cfg := &Config{}
	cfg.applyEnvOverrides()
	assert.Equal(t, "/tmp/wizard-vault", cfg.Device.StatePath)
}

func TestLoadConfig_MissingFileReturnsError(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/to/config.yaml")
	require.Error(t, err)
}

func TestLoadConfig_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	content := []byte("server:\n  port: \"7070\"\ngateway:\n  daily_budget_usd: 15.0\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 15.0, cfg.Gateway.DailyBudgetUSD)
}

func TestStore_SnapshotReturnsLoadedConfig(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	store := NewStore(cfg)

	snap := store.Snapshot()
	assert.Equal(t, "8080", snap.Server.Port)
}

func TestStore_ReplaceSwapsSnapshotAtomically(t *testing.T) {
	cfg1 := &Config{}
	cfg1.Server.Port = "1111"
	store := NewStore(cfg1)

	cfg2 := &Config{}
	cfg2.Server.Port = "2222"
	store.Replace(cfg2)

	assert.Equal(t, "2222", store.Snapshot().Server.Port)
}

func TestConfig_IsProductionAndDevelopment(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Env = "production"
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())

	cfg.Server.Env = "development"
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestConfig_GetPortFallsBackToDefault(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "8080", cfg.GetPort())

	cfg.Server.Port = "9090"
	assert.Equal(t, "9090", cfg.GetPort())
}
