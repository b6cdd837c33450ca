package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTierForEndpoint(t *testing.T) {
	assert.Equal(t, TierLight, TierForEndpoint("/health"))
	assert.Equal(t, TierExpensive, TierForEndpoint("/api/ai/complete"))
	assert.Equal(t, TierStandard, TierForEndpoint("/api/sync/jira"))
	assert.Equal(t, TierStandard, TierForEndpoint("/api/unknown"))
}

func TestCheckAllowsWithinLimit(t *testing.T) {
	l := New()
	result := l.Check("dev-1", "/health")
	assert.True(t, result.Allowed)
	assert.Equal(t, TierLight, result.Tier)
	l.Record("dev-1", "/health", true)
}

func TestCheckDeniesOverMinuteLimit(t *testing.T) {
	l := New()
	l.limits = map[Tier]TierLimits{
		TierExpensive: {PerMinute: 1, PerHour: 100, PerDay: 100, Cooldown: 0},
	}

	first := l.Check("dev-2", "/api/ai/complete")
	assert.True(t, first.Allowed)
	l.Record("dev-2", "/api/ai/complete", true)

	second := l.Check("dev-2", "/api/ai/complete")
	assert.False(t, second.Allowed)
	assert.Greater(t, second.RetryAfter, time.Duration(0))
}

func TestBlockAndUnblockDevice(t *testing.T) {
	l := New()
	l.BlockDevice("dev-3", TierStandard, time.Minute)

	result := l.Check("dev-3", "/api/dispatch")
	assert.False(t, result.Allowed)

	l.UnblockDevice("dev-3", TierStandard)
	result = l.Check("dev-3", "/api/dispatch")
	assert.True(t, result.Allowed)
}

func TestCooldownDeniesRapidSuccessiveRequests(t *testing.T) {
	l := New()
	l.limits = map[Tier]TierLimits{
		TierStandard: {PerMinute: 100, PerHour: 1000, PerDay: 10000, Cooldown: time.Hour},
	}

	first := l.Check("dev-4", "/api/dispatch")
	assert.True(t, first.Allowed)
	l.Record("dev-4", "/api/dispatch", true)

	second := l.Check("dev-4", "/api/dispatch")
	assert.False(t, second.Allowed)
}
