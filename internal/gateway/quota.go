package gateway

import (
	"sync"
	"time"

	"github.com/ocx/backend/internal/router"
)

// QuotaProvider is the quota-tracking identity a route resolves to. It is
// distinct from router.Backend: several router backends can map to the same
// underlying quota provider (e.g. "local" and "vibe" both track as offline).
type QuotaProvider string

const (
	QuotaOffline QuotaProvider = "offline"
	QuotaOpenAI  QuotaProvider = "openai"
	QuotaOllama  QuotaProvider = "ollama"
)

// mapToQuotaProvider resolves a contract provider hint and backend into the
// quota provider whose daily ceiling applies.
func mapToQuotaProvider(contractProvider string, backend router.Backend) QuotaProvider {
	switch contractProvider {
	case "ollama":
		return QuotaOllama
	case "openrouter", "cloud", "openai":
		return QuotaOpenAI
	}
	if backend == router.BackendCloud {
		return QuotaOpenAI
	}
	return QuotaOffline
}

type quotaWindow struct {
	requestsToday int
	tokensToday   int
	dayMark       time.Time
}

// QuotaTracker enforces a per-provider daily request/token ceiling,
// independent of the policy enforcer's cost-budget check.
type QuotaTracker struct {
	mu      sync.Mutex
	limits  map[QuotaProvider]int // max tokens/day; 0 means unlimited
	windows map[QuotaProvider]*quotaWindow
}

func NewQuotaTracker(limits map[QuotaProvider]int) *QuotaTracker {
	if limits == nil {
		limits = map[QuotaProvider]int{
			QuotaOpenAI: 500000,
			QuotaOllama: 0,
			QuotaOffline: 0,
		}
	}
	return &QuotaTracker{limits: limits, windows: map[QuotaProvider]*quotaWindow{}}
}

func (q *QuotaTracker) window(p QuotaProvider) *quotaWindow {
	w, ok := q.windows[p]
	if !ok {
		w = &quotaWindow{dayMark: time.Now()}
		q.windows[p] = w
	}
	now := time.Now()
	if now.YearDay() != w.dayMark.YearDay() || now.Year() != w.dayMark.Year() {
		w.requestsToday = 0
		w.tokensToday = 0
		w.dayMark = now
	}
	return w
}

// CanRequest reports whether an additional request of the given token size
// fits within the provider's remaining daily quota.
func (q *QuotaTracker) CanRequest(p QuotaProvider, estimatedTokens int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	limit, capped := q.limits[p]
	if !capped || limit == 0 {
		return true
	}
	w := q.window(p)
	return w.tokensToday+estimatedTokens <= limit
}

// Record accounts for a completed request against the provider's quota.
func (q *QuotaTracker) Record(p QuotaProvider, tokensUsed int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	w := q.window(p)
	w.requestsToday++
	w.tokensToday += tokensUsed
}
