// Package gateway implements the Completion Gateway: it fulfills a
// completion request end-to-end under the offline-first policy, routing
// through the classifier, router, and policy enforcer, and accounting for
// cost and quota along the way.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ocx/backend/internal/classifier"
	"github.com/ocx/backend/internal/circuitbreaker"
	"github.com/ocx/backend/internal/policy"
	"github.com/ocx/backend/internal/router"
	"github.com/ocx/backend/internal/wizerr"
)

// Request is the Completion Gateway's input contract.
type Request struct {
	Prompt          string            `json:"prompt"`
	Model           string            `json:"model,omitempty"`
	SystemPrompt    string            `json:"system_prompt,omitempty"`
	MaxTokens       int               `json:"max_tokens,omitempty"`
	Temperature     *float64          `json:"temperature,omitempty"`
	Stream          bool              `json:"stream,omitempty"`
	Mode            string            `json:"mode,omitempty"` // conversation | creative | code
	TaskID          string            `json:"task_id,omitempty"`
	Workspace       string            `json:"workspace,omitempty"`
	Privacy         string            `json:"privacy,omitempty"`
	Urgency         string            `json:"urgency,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
	ConversationID  string            `json:"conversation_id,omitempty"`
	ForceCloud      bool              `json:"force_cloud,omitempty"`
	CloudSanity     bool              `json:"cloud_sanity,omitempty"`
	AllowCloud      bool              `json:"allow_cloud,omitempty"`
	OfflineRequired bool              `json:"offline_required,omitempty"`
	GhostMode       bool              `json:"ghost_mode,omitempty"`
	TaskHint        string            `json:"task_hint,omitempty"`
}

// SanityCheck is the optional cloud cross-check attached to a local response.
type SanityCheck struct {
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Content  string `json:"content"`
}

// Response is the Completion Gateway's output contract.
type Response struct {
	Success         bool                     `json:"success"`
	Content         string                   `json:"content,omitempty"`
	Model           string                   `json:"model,omitempty"`
	Provider        string                   `json:"provider,omitempty"`
	Backend         router.Backend           `json:"backend,omitempty"`
	PromptTokens    int                      `json:"prompt_tokens,omitempty"`
	CompletionTokens int                     `json:"completion_tokens,omitempty"`
	TotalTokens     int                      `json:"total_tokens,omitempty"`
	Cost            float64                  `json:"cost,omitempty"`
	Route           *router.Route            `json:"route,omitempty"`
	Classification  *classifier.TaskProfile  `json:"classification,omitempty"`
	Cached          bool                     `json:"cached,omitempty"`
	LatencyMs       int64                    `json:"latency_ms"`
	Error           *wizerr.Error            `json:"error,omitempty"`
	Timestamp       time.Time                `json:"timestamp"`
	SanityCheck     *SanityCheck             `json:"sanity_check,omitempty"`
}

// modePreset carries a temperature and system-prompt default per mode.
type modePreset struct {
	Temperature  float64
	SystemPrompt string
	DefaultModel string
}

var modePresets = map[string]modePreset{
	"conversation": {
		Temperature:  0.7,
		SystemPrompt: "You are a helpful assistant embedded in an offline-first device gateway.",
		DefaultModel: "mistral-small2",
	},
	"creative": {
		Temperature:  1.0,
		SystemPrompt: "You are a creative collaborator. Favor originality over caution.",
		DefaultModel: "mistral-small2",
	},
	"code": {
		Temperature:  0.2,
		SystemPrompt: "You are a precise coding assistant. Prefer correctness over verbosity.",
		DefaultModel: "devstral-small-2",
	},
}

// contractModelMap resolves a contract intent to the model the router
// contract prefers for it.
var contractModelMap = map[string]string{
	"chat":   "mistral-small",
	"design": "mistral-large",
	"code":   "devstral-small-2",
}

// LocalBackend executes a completion against the on-device model service.
type LocalBackend interface {
	Generate(ctx context.Context, prompt, system string, temperature float64, maxTokens int) (content string, promptTokens, completionTokens int, err error)
}

// CloudBackend executes a completion against the configured cloud provider.
type CloudBackend interface {
	Generate(ctx context.Context, prompt, model string) (content string, promptTokens, completionTokens int, err error)
	Name() string
}

// Config tunes the gateway's guardrails.
type Config struct {
	DailyBudgetUSD      float64
	MonthlyBudgetUSD    float64
	MaxRequestsPerDay   int
	MaxTokensPerRequest int
	MaxSafeCloudTokens  int
	SanityCheckEnabled  bool
}

func DefaultConfig() Config {
	return Config{
		DailyBudgetUSD:      10.0,
		MonthlyBudgetUSD:    200.0,
		MaxRequestsPerDay:   100,
		MaxTokensPerRequest: 4096,
		MaxSafeCloudTokens:  6000,
		SanityCheckEnabled:  true,
	}
}

// costTracker is owned exclusively by the Gateway, as required by the
// ownership model: gateway owns cost tracker and routing history.
type costTracker struct {
	mu             sync.Mutex
	dailySpent     float64
	monthlySpent   float64
	requestsToday  int
	totalRequests  int
	dayMark        time.Time
	monthMark      time.Time
}

func newCostTracker() *costTracker {
	now := time.Now()
	return &costTracker{dayMark: now, monthMark: now}
}

func (c *costTracker) rollIfNeeded() {
	now := time.Now()
	if now.YearDay() != c.dayMark.YearDay() || now.Year() != c.dayMark.Year() {
		c.dailySpent = 0
		c.requestsToday = 0
		c.dayMark = now
	}
	if now.Month() != c.monthMark.Month() || now.Year() != c.monthMark.Year() {
		c.monthlySpent = 0
		c.monthMark = now
	}
}

// Gateway is the Completion Gateway. It wires the classifier, router, and
// policy enforcer together and executes the 11-step completion pipeline.
type Gateway struct {
	cfg       Config
	classifier *classifier.Classifier
	router    *router.ModelRouter
	policy    *policy.Enforcer
	quota     *QuotaTracker
	local     LocalBackend
	cloud     CloudBackend
	breakers  *circuitbreaker.GatewayCircuitBreakers
	costs     *costTracker
	logger    *log.Logger
}

func New(cfg Config, cls *classifier.Classifier, r *router.ModelRouter, p *policy.Enforcer, quota *QuotaTracker, local LocalBackend, cloud CloudBackend) *Gateway {
	return &Gateway{
		cfg:        cfg,
		classifier: cls,
		router:     r,
		policy:     p,
		quota:      quota,
		local:      local,
		cloud:      cloud,
		breakers:   circuitbreaker.NewGatewayCircuitBreakers(),
		costs:      newCostTracker(),
		logger:     log.New(os.Stdout, "[GATEWAY] ", log.LstdFlags),
	}
}

func shouldSanityCheck(content string) bool {
	if len(content) < 160 {
		return true
	}
	lower := strings.ToLower(content)
	phrases := []string{
		"i'm not sure", "i am not sure", "not sure", "unsure", "i think",
		"maybe", "might be", "cannot", "can't", "unable", "no access",
		"need more information", "not enough context", "as an ai",
	}
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// routerContract is the step-5 evaluation that can force a route offline
// regardless of what the router itself decided.
type routerContract struct {
	Intent        string
	Model         string
	OnlineAllowed bool
	Provider      string
	Reason        string
}

func evaluateRouterContract(profile classifier.TaskProfile, ghostMode, offlineRequired bool) routerContract {
	intent := "code"
	switch profile.Intent {
	case classifier.IntentDesign:
		intent = "design"
	case classifier.IntentDocs:
		intent = "chat"
	}

	model := contractModelMap[intent]

	c := routerContract{Intent: intent, Model: model, OnlineAllowed: true, Reason: "policy_allows_online"}
	switch {
	case ghostMode:
		c.OnlineAllowed = false
		c.Provider = "ollama"
		c.Reason = "ghost_mode"
	case profile.Privacy == classifier.PrivacyPrivate || offlineRequired:
		c.OnlineAllowed = false
		c.Provider = "ollama"
		c.Reason = "offline_required_or_private"
	}
	return c
}

// Complete runs the full completion pipeline for one request.
func (g *Gateway) Complete(ctx context.Context, req Request, deviceID string) Response {
	start := time.Now()

	// Step 1: normalize.
	if req.TaskID == "" {
		req.TaskID = uuid.NewString()
	}
	if req.Workspace == "" {
		req.Workspace = "core"
	}
	if req.Privacy == "" {
		req.Privacy = "internal"
	}
	preset, hasPreset := modePresets[req.Mode]
	if !hasPreset {
		preset = modePresets["conversation"]
	}
	if req.Model == "" {
		req.Model = preset.DefaultModel
	}
	if req.SystemPrompt == "" {
		req.SystemPrompt = preset.SystemPrompt
	}
	temperature := preset.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.cfg.MaxTokensPerRequest
	}

	// Step 2: budget & rate guardrails.
	g.costs.mu.Lock()
	day := g.costs.dayMark
	g.costs.rollIfNeeded()
	if !g.costs.dayMark.Equal(day) {
		g.policy.ResetDailyBudget()
	}
	if g.costs.dailySpent >= g.cfg.DailyBudgetUSD {
		g.costs.mu.Unlock()
		return g.fail(req, start, wizerr.BackendDown("gateway", "daily budget exhausted"))
	}
	if g.costs.requestsToday >= g.cfg.MaxRequestsPerDay {
		g.costs.mu.Unlock()
		return g.fail(req, start, wizerr.BackendDown("gateway", "daily request cap reached"))
	}
	g.costs.mu.Unlock()

	// Step 3: classify.
	profile := g.classifier.Classify(req.TaskID, req.Prompt, req.Workspace, req.Urgency, req.Privacy)
	classification := router.Classification{
		TaskID:     profile.TaskID,
		Privacy:    string(profile.Privacy),
		Model:      req.Model,
		Tags:       append(append([]string{}, profile.Tags...), req.Tags...),
		TokenCount: profile.TokenEstimate,
	}
	if req.OfflineRequired {
		classification.Tags = append(classification.Tags, "offline_required")
	}

	// Step 4: route.
	var route router.Route
	if req.OfflineRequired || profile.Privacy == classifier.PrivacyPrivate || req.GhostMode {
		route = router.Route{
			TaskID: profile.TaskID, Backend: router.BackendLocal, Model: req.Model,
			PromptSize: profile.TokenEstimate, EscalationReason: "forced_local",
			PrivacyLevel: string(profile.Privacy), Timestamp: time.Now(),
		}
		req.CloudSanity = false
	} else if req.ForceCloud {
		route = router.Route{
			TaskID: profile.TaskID, Backend: router.BackendCloud, Model: req.Model,
			PromptSize: profile.TokenEstimate, EscalationReason: "force_cloud",
			PrivacyLevel: string(profile.Privacy), Timestamp: time.Now(),
		}
	} else {
		route = g.router.Route(classification)
	}
	if req.Workspace == "dev" {
		req.AllowCloud = false
		req.CloudSanity = false
	}

	// Step 5: contract check.
	contract := evaluateRouterContract(profile, req.GhostMode, req.OfflineRequired)
	allowCloud := req.AllowCloud || req.ForceCloud || route.Backend == router.BackendCloud
	if !contract.OnlineAllowed {
		allowCloud = false
		req.CloudSanity = false
		if req.ForceCloud {
			resp := g.fail(req, start, wizerr.BackendDown("gateway", "Vibe router contract blocked cloud routing"))
			resp.Model = contract.Model
			resp.Provider = contract.Provider
			resp.Backend = router.BackendLocal
			resp.Route = &route
			resp.Classification = &profile
			return resp
		}
		route.Backend = router.BackendLocal
	}
	if contract.Model != "" {
		req.Model = contract.Model
	}

	var estimatedCost float64
	if allowCloud && (req.ForceCloud || route.Backend == router.BackendCloud) {
		estimatedCost = route.EstimatedCost
	}

	// Step 6: oversize guard.
	if req.ForceCloud && allowCloud && profile.TokenEstimate > g.cfg.MaxSafeCloudTokens {
		return g.fail(req, start, wizerr.InvalidInput("gateway", "prompt too large for cloud: avoid provider user_request_timeout"))
	}

	// Step 7: policy enforcement, with local fallback.
	backend := router.BackendLocal
	if allowCloud && (req.ForceCloud || route.Backend == router.BackendCloud) {
		backend = router.BackendCloud
	}
	valid, reason := g.policy.ValidateRoute(req.TaskID, string(profile.Privacy), string(backend), estimatedCost, req.Prompt)
	if !valid {
		if req.ForceCloud {
			return g.fail(req, start, wizerr.InvalidInput("policy", "policy rejected cloud route: "+reason))
		}
		backend = router.BackendLocal
		valid, reason = g.policy.ValidateRoute(req.TaskID, string(profile.Privacy), string(backend), 0, req.Prompt)
		if !valid {
			return g.fail(req, start, wizerr.InvalidInput("policy", "policy rejected fallback route: "+reason))
		}
	}

	// Step 8: quota check.
	quotaProvider := mapToQuotaProvider(contract.Provider, backend)
	if !g.quota.CanRequest(quotaProvider, profile.TokenEstimate) {
		return g.fail(req, start, wizerr.BackendDown(quotaProvider, fmt.Sprintf("quota exceeded for provider %s", quotaProvider)))
	}

	// Step 9: execute.
	var content, provider string
	var promptTokens, completionTokens int
	var execErr error
	if backend == router.BackendCloud {
		provider = g.cloud.Name()
		_, execErr = g.breakers.Cloud.Execute(func() (interface{}, error) {
			var cerr error
			content, promptTokens, completionTokens, cerr = g.cloud.Generate(ctx, req.Prompt, req.Model)
			return nil, cerr
		})
	} else {
		provider = "ollama"
		_, execErr = g.breakers.Local.Execute(func() (interface{}, error) {
			var cerr error
			content, promptTokens, completionTokens, cerr = g.local.Generate(ctx, req.Prompt, req.SystemPrompt, temperature, maxTokens)
			return nil, cerr
		})
	}
	if execErr != nil {
		g.router.RecordLocalFailure()
		if errors.Is(execErr, circuitbreaker.ErrCircuitOpen) || errors.Is(execErr, circuitbreaker.ErrTooManyRequests) {
			return g.fail(req, start, wizerr.BackendDown(provider, execErr.Error()))
		}
		return g.fail(req, start, wizerr.Normalize(execErr, provider))
	}
	if backend == router.BackendLocal {
		g.router.RecordLocalSuccess()
	}

	// Step 10: post-execution accounting.
	g.costs.mu.Lock()
	g.costs.requestsToday++
	g.costs.totalRequests++
	if backend == router.BackendCloud {
		g.costs.dailySpent += estimatedCost
		g.costs.monthlySpent += estimatedCost
		g.policy.RecordCloudCost(estimatedCost)
	}
	g.costs.mu.Unlock()
	g.quota.Record(quotaProvider, promptTokens+completionTokens)

	resp := Response{
		Success:          true,
		Content:          content,
		Model:            req.Model,
		Provider:         provider,
		Backend:          backend,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Cost:             estimatedCost,
		Route:            &route,
		Classification:   &profile,
		LatencyMs:        time.Since(start).Milliseconds(),
		Timestamp:        time.Now(),
	}

	// Step 11: optional sanity cross-check.
	if backend == router.BackendLocal && allowCloud && g.cfg.SanityCheckEnabled &&
		(req.CloudSanity || shouldSanityCheck(content)) {
		valid, _ := g.policy.ValidateRoute(req.TaskID, string(profile.Privacy), string(router.BackendCloud), 0, req.Prompt)
		if valid {
			var sanityContent string
			_, sanityErr := g.breakers.SanityCheck.Execute(func() (interface{}, error) {
				var cerr error
				sanityContent, _, _, cerr = g.cloud.Generate(ctx, req.Prompt, req.Model)
				return nil, cerr
			})
			if sanityErr == nil {
				resp.SanityCheck = &SanityCheck{Model: req.Model, Provider: g.cloud.Name(), Content: sanityContent}
			} else {
				g.logger.Printf("sanity cross-check failed: %v", sanityErr)
			}
		}
	}

	return resp
}

// Health reports the aggregate state of the gateway's backend circuit
// breakers (local, cloud, sanity-check), for surfacing on /api/status.
func (g *Gateway) Health() (string, map[string]string) {
	return g.breakers.HealthStatus()
}

func (g *Gateway) fail(req Request, start time.Time, werr *wizerr.Error) Response {
	g.logger.Printf("completion failed for task %s: %s", req.TaskID, werr.Message)
	return Response{
		Success:   false,
		Error:     werr,
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now(),
	}
}
