package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cloudEnabledConfig() Config {
	cfg := DefaultConfig()
	cfg.CloudEnabled = true
	return cfg
}

func TestValidateRoute_PrivateCannotUseCloud(t *testing.T) {
	e := New(cloudEnabledConfig())
	ok, reason := e.ValidateRoute("t1", "private", "cloud", 0.01, "hello world")
	assert.False(t, ok)
	assert.Contains(t, reason, "private tasks cannot use cloud backend")

	violations := e.Violations()
	require.Len(t, violations, 1)
	assert.Equal(t, "t1", violations[0].TaskID)
	assert.Equal(t, "privacy_enforcement", violations[0].Rule)
}

func TestValidateRoute_CloudDisabledGlobally(t *testing.T) {
	e := New(DefaultConfig()) // CloudEnabled defaults false
	ok, reason := e.ValidateRoute("t2", "internal", "cloud", 0.01, "hello")
	assert.False(t, ok)
	assert.Contains(t, reason, "cloud backend is disabled")
}

func TestValidateRoute_SecretsBlockCloud(t *testing.T) {
	e := New(cloudEnabledConfig())
	prompt := `my password: Sup3rSecretValue!`
	ok, reason := e.ValidateRoute("t3", "internal", "cloud", 0.01, prompt)
	assert.False(t, ok)
	assert.Contains(t, reason, "detected secrets in prompt")
}

func TestValidateRoute_SecretsAllowedLocally(t *testing.T) {
	e := New(DefaultConfig())
	prompt := `my password: Sup3rSecretValue!`
	ok, _ := e.ValidateRoute("t4", "internal", "local", 0, prompt)
	assert.True(t, ok)
}

func TestValidateRoute_DailyBudgetExceeded(t *testing.T) {
	cfg := cloudEnabledConfig()
	cfg.DailyBudgetUSD = 1.0
	e := New(cfg)
	e.RecordCloudCost(0.95)

	ok, reason := e.ValidateRoute("t5", "internal", "cloud", 0.10, "plain prompt")
	assert.False(t, ok)
	assert.Contains(t, reason, "daily budget exceeded")
}

func TestValidateRoute_AllowsWithinBudget(t *testing.T) {
	e := New(cloudEnabledConfig())
	ok, reason := e.ValidateRoute("t6", "internal", "cloud", 0.50, "plain prompt")
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestRedactSecrets_ReplacesMatch(t *testing.T) {
	e := New(DefaultConfig())
	redacted := e.RedactSecrets("my password: Sup3rSecretValue!")
	assert.Contains(t, redacted, "[REDACTED:password]")
	assert.NotContains(t, redacted, "Sup3rSecretValue!")
}

func TestRecordCloudCost_AccumulatesAndResets(t *testing.T) {
	e := New(DefaultConfig())
	e.RecordCloudCost(1.5)
	e.RecordCloudCost(2.0)
	assert.InDelta(t, 3.5, e.TodayCloudCost(), 0.001)

	e.ResetDailyBudget()
	assert.Equal(t, 0.0, e.TodayCloudCost())
}

func TestGetStatus_ReflectsBudgetAndViolations(t *testing.T) {
	cfg := cloudEnabledConfig()
	cfg.DailyBudgetUSD = 5.0
	e := New(cfg)
	e.RecordCloudCost(2.0)
	e.ValidateRoute("t7", "private", "cloud", 0.01, "")

	status := e.GetStatus()
	assert.True(t, status.CloudEnabled)
	assert.InDelta(t, 5.0, status.DailyBudgetUSD, 0.001)
	assert.InDelta(t, 2.0, status.TodaySpentUSD, 0.001)
	assert.InDelta(t, 3.0, status.TodayRemainingUSD, 0.001)
	assert.Equal(t, 1, status.TotalViolations)
	require.Len(t, status.RecentViolations, 1)
}

func TestGetStatus_RemainingNeverNegative(t *testing.T) {
	cfg := cloudEnabledConfig()
	cfg.DailyBudgetUSD = 1.0
	e := New(cfg)
	e.RecordCloudCost(5.0)

	status := e.GetStatus()
	assert.Equal(t, 0.0, status.TodayRemainingUSD)
}

func TestEachPolicyViolation_RecordedInAuditLog(t *testing.T) {
	e := New(DefaultConfig())
	e.ValidateRoute("audit-1", "internal", "cloud", 0, "")

	violations := e.Violations()
	require.Len(t, violations, 1)
	assert.Equal(t, "audit-1", violations[0].TaskID)
	assert.Equal(t, "cloud_disabled", violations[0].Rule)
}
