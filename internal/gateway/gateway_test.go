package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/backend/internal/classifier"
	"github.com/ocx/backend/internal/policy"
	"github.com/ocx/backend/internal/router"
	"github.com/ocx/backend/internal/wizerr"
)

type fakeLocal struct {
	content string
	err     error
}

func (f *fakeLocal) Generate(ctx context.Context, prompt, system string, temperature float64, maxTokens int) (string, int, int, error) {
	if f.err != nil {
		return "", 0, 0, f.err
	}
	return f.content, 10, 20, nil
}

type fakeCloud struct {
	content string
	err     error
}

func (f *fakeCloud) Name() string { return "fake-cloud" }
func (f *fakeCloud) Generate(ctx context.Context, prompt, model string) (string, int, int, error) {
	if f.err != nil {
		return "", 0, 0, f.err
	}
	return f.content, 15, 25, nil
}

func newTestGateway(local LocalBackend, cloud CloudBackend) *Gateway {
	cfg := DefaultConfig()
	polCfg := policy.DefaultConfig()
	polCfg.CloudEnabled = true
	return New(cfg, classifier.New(), router.New(router.DefaultConfig()), policy.New(polCfg), NewQuotaTracker(nil), local, cloud)
}

func TestCompleteLocalSuccess(t *testing.T) {
	gw := newTestGateway(&fakeLocal{content: "a clear and complete answer that is definitely longer than one hundred sixty characters so it does not trigger the sanity-check heuristic by length alone, just to be safe here."}, &fakeCloud{content: "sanity"})

	resp := gw.Complete(context.Background(), Request{Prompt: "refactor this function", Privacy: "private"}, "dev-1")
	require.True(t, resp.Success)
	assert.Equal(t, router.BackendLocal, resp.Backend)
	assert.Equal(t, 30, resp.TotalTokens)
}

func TestCompletePrivateForcesLocal(t *testing.T) {
	gw := newTestGateway(&fakeLocal{content: "ok"}, &fakeCloud{content: "sanity"})

	resp := gw.Complete(context.Background(), Request{Prompt: "secret api_key=abcd1234abcd1234abcd1234abcd1234", Privacy: "private", ForceCloud: true}, "dev-1")
	assert.False(t, resp.Success)
	assert.Equal(t, router.BackendLocal, resp.Backend)
}

func TestCompleteLocalExecutionFailure(t *testing.T) {
	gw := newTestGateway(&fakeLocal{err: errors.New("connection refused")}, &fakeCloud{content: "sanity"})

	resp := gw.Complete(context.Background(), Request{Prompt: "hello", Privacy: "private"}, "dev-1")
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, wizerr.CodeBackendUnavailable, resp.Error.Code)
	assert.True(t, resp.Error.Retryable)
}

func TestCompleteCloudRouteCarriesEscalationReason(t *testing.T) {
	gw := newTestGateway(&fakeLocal{content: "ok"}, &fakeCloud{content: "cloud response"})

	resp := gw.Complete(context.Background(), Request{Prompt: "refactor this function", ForceCloud: true, AllowCloud: true}, "dev-1")
	require.True(t, resp.Success)
	assert.Equal(t, router.BackendCloud, resp.Backend)
	require.NotNil(t, resp.Route)
	assert.NotEmpty(t, resp.Route.EscalationReason)
	assert.NotEqual(t, "private", resp.Route.PrivacyLevel)
}

func TestCompleteOversizeCloudGuard(t *testing.T) {
	gw := newTestGateway(&fakeLocal{content: "ok"}, &fakeCloud{content: "sanity"})
	cfg := gw.cfg
	cfg.MaxSafeCloudTokens = 1
	gw.cfg = cfg

	bigPrompt := make([]byte, 10000)
	for i := range bigPrompt {
		bigPrompt[i] = 'a'
	}
	resp := gw.Complete(context.Background(), Request{Prompt: string(bigPrompt), ForceCloud: true, AllowCloud: true}, "dev-1")
	assert.False(t, resp.Success)
}
