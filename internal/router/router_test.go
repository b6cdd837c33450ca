package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute_PrivateAlwaysLocal(t *testing.T) {
	r := New(DefaultConfig())
	route := r.Route(Classification{TaskID: "t1", Privacy: "private", TokenCount: 500})
	assert.Equal(t, BackendLocal, route.Backend)
	assert.Equal(t, "privacy_required", route.EscalationReason)
	assert.Equal(t, 0.0, route.EstimatedCost)
}

func TestRoute_OfflineRequiredTagForcesLocal(t *testing.T) {
	r := New(DefaultConfig())
	route := r.Route(Classification{TaskID: "t2", Privacy: "internal", Tags: []string{"offline_required"}})
	assert.Equal(t, BackendLocal, route.Backend)
	assert.Equal(t, "offline_required", route.EscalationReason)
}

func TestRoute_DefaultsLocalWhenHealthy(t *testing.T) {
	r := New(DefaultConfig())
	route := r.Route(Classification{TaskID: "t3", Privacy: "internal", TokenCount: 100})
	assert.Equal(t, BackendLocal, route.Backend)
	assert.Equal(t, "default_local", route.EscalationReason)
}

func TestRoute_EscalatesToCloudAfterFailureThreshold(t *testing.T) {
	r := New(DefaultConfig())
	r.RecordLocalFailure()
	r.RecordLocalFailure()

	route := r.Route(Classification{TaskID: "t4", Privacy: "internal", TokenCount: 1000})
	require.Equal(t, BackendCloud, route.Backend)
	assert.Equal(t, "local_failure", route.EscalationReason)
	assert.Greater(t, route.EstimatedCost, 0.0)
}

func TestRoute_LocalSuccessResetsFailureCounter(t *testing.T) {
	r := New(DefaultConfig())
	r.RecordLocalFailure()
	r.RecordLocalFailure()
	r.RecordLocalSuccess()

	route := r.Route(Classification{TaskID: "t5", Privacy: "internal"})
	assert.Equal(t, BackendLocal, route.Backend)
	assert.Equal(t, "default_local", route.EscalationReason)
}

func TestRoute_CloudDisabledFallsBackLocal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CloudEnabled = false
	r := New(cfg)
	r.RecordLocalFailure()
	r.RecordLocalFailure()

	route := r.Route(Classification{TaskID: "t6", Privacy: "internal"})
	assert.Equal(t, BackendLocal, route.Backend)
	assert.Equal(t, "fallback_local", route.EscalationReason)
}

func TestRoute_NeverCloudWhenPrivateEvenAfterFailures(t *testing.T) {
	r := New(DefaultConfig())
	r.RecordLocalFailure()
	r.RecordLocalFailure()
	r.RecordLocalFailure()

	route := r.Route(Classification{TaskID: "t7", Privacy: "private"})
	assert.Equal(t, BackendLocal, route.Backend)
}

func TestGetStats_TracksHistory(t *testing.T) {
	r := New(DefaultConfig())
	r.Route(Classification{TaskID: "a", Privacy: "internal"})
	r.RecordLocalFailure()
	r.RecordLocalFailure()
	r.Route(Classification{TaskID: "b", Privacy: "internal", TokenCount: 200})

	stats := r.GetStats()
	assert.Equal(t, 2, stats.TotalRoutes)
	assert.Equal(t, 1, stats.LocalRoutes)
	assert.Equal(t, 1, stats.CloudRoutes)
	assert.Greater(t, stats.TotalCost, 0.0)
}

func TestEstimateCost_CapsOutputTokensAt2000(t *testing.T) {
	r := New(DefaultConfig())
	r.RecordLocalFailure()
	r.RecordLocalFailure()

	small := r.Route(Classification{TaskID: "small", Privacy: "internal", TokenCount: 1000})
	large := r.Route(Classification{TaskID: "large", Privacy: "internal", TokenCount: 10000})

	// Input cost scales linearly but output cost is capped at 2000 tokens,
	// so a 10x larger prompt costs far less than 10x more.
	assert.Less(t, large.EstimatedCost, small.EstimatedCost*10)
}
