package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := New(DefaultConfig("test"))
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Allow())
}

func TestCircuitBreaker_TripsOpenAfterFailureThreshold(t *testing.T) {
	cfg := &Config{
		Name:        "test",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
	}
	cb := New(cfg)

	failingReq := func() (interface{}, error) { return nil, errors.New("boom") }
	for i := 0; i < 3; i++ {
		_, err := cb.Execute(failingReq)
		assert.Error(t, err)
	}

	assert.Equal(t, StateOpen, cb.State())
	_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenAfterTimeoutThenCloses(t *testing.T) {
	cfg := &Config{
		Name:        "test",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     20 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	}
	cb := New(cfg)

	_, err := cb.Execute(func() (interface{}, error) { return nil, errors.New("boom") })
	require.Error(t, err)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	result, err := cb.Execute(func() (interface{}, error) { return "recovered", nil })
	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_PanicRecordsFailureAndRepropagates(t *testing.T) {
	cfg := &Config{
		Name:        "test",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	}
	cb := New(cfg)

	assert.Panics(t, func() {
		_, _ = cb.Execute(func() (interface{}, error) {
			panic("kaboom")
		})
	})
	assert.Equal(t, StateOpen, cb.State())
}

func TestCounts_FailureRatioAndClear(t *testing.T) {
	var c Counts
	assert.Equal(t, 0.0, c.FailureRatio())

	c.OnSuccess()
	c.OnFailure()
	c.OnFailure()
	assert.InDelta(t, 2.0/3.0, c.FailureRatio(), 0.001)
	assert.Equal(t, uint32(0), c.ConsecutiveSuccesses)
	assert.Equal(t, uint32(2), c.ConsecutiveFailures)

	c.Clear()
	assert.Equal(t, uint32(0), c.Requests)
}

func TestManager_GetCreatesAndReusesBreaker(t *testing.T) {
	m := NewManager(nil)
	cb1 := m.Get("svc-a")
	cb2 := m.Get("svc-a")
	assert.Same(t, cb1, cb2)
	assert.Contains(t, m.List(), "svc-a")
}

func TestManager_RemoveDeletesBreaker(t *testing.T) {
	m := NewManager(nil)
	m.Get("svc-b")
	m.Remove("svc-b")
	assert.NotContains(t, m.List(), "svc-b")
}

func TestGatewayCircuitBreakers_HealthStatusReflectsOpenBreaker(t *testing.T) {
	g := NewGatewayCircuitBreakers()
	status, details := g.HealthStatus()
	assert.Equal(t, "HEALTHY", status)
	assert.Equal(t, "CLOSED", details["local-backend"])

	for i := 0; i < 3; i++ {
		_, _ = g.Local.Execute(func() (interface{}, error) { return nil, errors.New("fail") })
	}

	status, details = g.HealthStatus()
	assert.Equal(t, "DEGRADED", status)
	assert.Equal(t, "OPEN", details["local-backend"])
}

func TestExecuteWithFallback_UsesFallbackWhenCircuitOpen(t *testing.T) {
	cfg := &Config{
		Name:        "test",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	}
	cb := New(cfg)
	_, _ = cb.Execute(func() (interface{}, error) { return nil, errors.New("boom") })
	require.Equal(t, StateOpen, cb.State())

	result, err := ExecuteWithFallback(cb,
		func() (string, error) { return "primary", nil },
		func(error) (string, error) { return "fallback", nil },
	)
	require.NoError(t, err)
	assert.Equal(t, "fallback", result)
}
