// Package router decides, for each classified task, whether it is served by
// the local backend or the cloud backend, and records the outcome for
// later audit and cost accounting.
package router

import (
	"log"
	"os"
	"sync"
	"time"
)

type Backend string

const (
	BackendLocal Backend = "local"
	BackendCloud Backend = "cloud"
)

// Classification is the minimal subset of a classifier.TaskProfile the
// router needs. It is defined locally (rather than imported) so the router
// package has no compile-time dependency on the classifier package --
// callers such as the gateway fill it in from their own profile type.
type Classification struct {
	TaskID     string
	Privacy    string
	Model      string
	Tags       []string
	TokenCount int
}

// HasTag reports whether the classification carries the given tag.
func (c Classification) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Route is the router's decision output, matching spec.md §3's Route data
// model: {task_id, backend, model, prompt_size, estimated_cost,
// escalation_reason?, privacy_level, timestamp}.
type Route struct {
	TaskID           string    `json:"task_id"`
	Backend          Backend   `json:"backend"`
	Model            string    `json:"model,omitempty"`
	PromptSize       int       `json:"prompt_size"`
	EstimatedCost    float64   `json:"estimated_cost"`
	EscalationReason string    `json:"escalation_reason,omitempty"`
	PrivacyLevel     string    `json:"privacy_level"`
	Timestamp        time.Time `json:"timestamp"`
}

// ModelRouter implements the fixed 5-rule routing order described in
// spec.md §4.2. It tracks consecutive local-backend failures to decide
// when cloud burst capacity should be considered.
type ModelRouter struct {
	mu              sync.Mutex
	localEnabled    bool
	cloudEnabled    bool
	localFailures   int
	failureThreshold int
	routeHistory    []Route
	logger          *log.Logger
}

// Config controls which backends are globally available to the router.
type Config struct {
	LocalEnabled     bool
	CloudEnabled     bool
	FailureThreshold int // consecutive local failures before cloud is preferred
}

func DefaultConfig() Config {
	return Config{LocalEnabled: true, CloudEnabled: true, FailureThreshold: 2}
}

func New(cfg Config) *ModelRouter {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 2
	}
	return &ModelRouter{
		localEnabled:     cfg.LocalEnabled,
		cloudEnabled:     cfg.CloudEnabled,
		failureThreshold: threshold,
		logger:           log.New(os.Stdout, "[ROUTER] ", log.LstdFlags),
	}
}

// Route applies the fixed rule order:
//  1. privacy == private               -> local
//  2. tag "offline_required"           -> local
//  3. local enabled && failures < threshold -> local
//  4. cloud enabled && privacy != private   -> cloud (reason=local_failure)
//  5. fallback                         -> local
func (r *ModelRouter) Route(c Classification) Route {
	r.mu.Lock()
	defer r.mu.Unlock()

	var route Route
	switch {
	case c.Privacy == "private":
		route = r.routeLocal(c, "privacy_required")
	case c.HasTag("offline_required"):
		route = r.routeLocal(c, "offline_required")
	case r.localEnabled && r.localFailures < r.failureThreshold:
		route = r.routeLocal(c, "default_local")
	case r.cloudEnabled && c.Privacy != "private":
		route = r.routeCloud(c, "local_failure")
	case r.cloudEnabled && c.HasTag("burst") && c.Privacy != "private":
		route = r.routeCloud(c, "burst_request")
	default:
		route = r.routeLocal(c, "fallback_local")
	}

	r.routeHistory = append(r.routeHistory, route)
	r.logger.Printf("routed %s -> %s (%s)", c.TaskID, route.Backend, route.EscalationReason)
	return route
}

func (r *ModelRouter) routeLocal(c Classification, reason string) Route {
	return Route{
		TaskID:           c.TaskID,
		Backend:          BackendLocal,
		Model:            c.Model,
		PromptSize:       c.TokenCount,
		EscalationReason: reason,
		EstimatedCost:    0,
		PrivacyLevel:     c.Privacy,
		Timestamp:        time.Now(),
	}
}

func (r *ModelRouter) routeCloud(c Classification, reason string) Route {
	return Route{
		TaskID:           c.TaskID,
		Backend:          BackendCloud,
		Model:            c.Model,
		PromptSize:       c.TokenCount,
		EscalationReason: reason,
		EstimatedCost:    estimateCost(c.TokenCount),
		PrivacyLevel:     c.Privacy,
		Timestamp:        time.Now(),
	}
}

// estimateCost mirrors the router's per-thousand-token cost model: input
// tokens are billed at $0.003/1k, and up to 2000 output tokens are billed
// at $0.015/1k.
func estimateCost(tokenCount int) float64 {
	outputTokens := tokenCount
	if outputTokens > 2000 {
		outputTokens = 2000
	}
	return (float64(tokenCount)*0.003 + float64(outputTokens)*0.015) / 1000
}

// RecordLocalFailure increments the consecutive local-failure counter used
// by rule 3. Call RecordLocalSuccess to reset it.
func (r *ModelRouter) RecordLocalFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.localFailures++
	r.logger.Printf("local backend failure recorded (count=%d)", r.localFailures)
}

// RecordLocalSuccess resets the consecutive-failure counter.
func (r *ModelRouter) RecordLocalSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.localFailures = 0
}

// Stats summarizes routing history for diagnostics.
type Stats struct {
	TotalRoutes   int     `json:"total_routes"`
	LocalRoutes   int     `json:"local_routes"`
	CloudRoutes   int     `json:"cloud_routes"`
	TotalCost     float64 `json:"total_cost"`
	LocalFailures int     `json:"local_failures"`
}

func (r *ModelRouter) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{LocalFailures: r.localFailures}
	for _, route := range r.routeHistory {
		stats.TotalRoutes++
		if route.Backend == BackendLocal {
			stats.LocalRoutes++
		} else {
			stats.CloudRoutes++
		}
		stats.TotalCost += route.EstimatedCost
	}
	return stats
}
