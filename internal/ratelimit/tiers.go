// Package ratelimit implements per-device, per-endpoint-tier admission
// control with sliding windows, modeled after the Wizard's endpoint-tier
// scheme: every endpoint belongs to exactly one of {light, standard, heavy,
// expensive}, each with its own minute/hour/day ceilings and cooldown.
package ratelimit

import (
	"strings"
	"time"
)

type Tier string

const (
	TierLight      Tier = "light"
	TierStandard   Tier = "standard"
	TierHeavy      Tier = "heavy"
	TierExpensive  Tier = "expensive"
)

// TierLimits bounds request volume for one tier.
type TierLimits struct {
	PerMinute int
	PerHour   int
	PerDay    int
	Cooldown  time.Duration
}

var DefaultTierLimits = map[Tier]TierLimits{
	TierLight:     {PerMinute: 120, PerHour: 3600, PerDay: 50000, Cooldown: 100 * time.Millisecond},
	TierStandard:  {PerMinute: 60, PerHour: 1000, PerDay: 10000, Cooldown: 500 * time.Millisecond},
	TierHeavy:     {PerMinute: 10, PerHour: 100, PerDay: 500, Cooldown: 2 * time.Second},
	TierExpensive: {PerMinute: 5, PerHour: 50, PerDay: 200, Cooldown: 5 * time.Second},
}

// endpointTiers maps exact endpoint paths to their tier. Paths containing
// "{param}" are matched positionally against request paths with the same
// segment count.
var endpointTiers = map[string]Tier{
	"/health":                TierLight,
	"/api/status":            TierLight,
	"/api/rate-limits":       TierLight,
	"/api/dispatch":          TierStandard,
	"/api/devices/pair":      TierStandard,
	"/api/sync/{kind}":       TierStandard,
	"/api/plugin/{id}":       TierStandard,
	"/api/ai/complete":       TierExpensive,
}

// TierForEndpoint resolves the tier for an endpoint path: exact match,
// else pattern match by equal segment count, else standard.
func TierForEndpoint(endpoint string) Tier {
	if tier, ok := endpointTiers[endpoint]; ok {
		return tier
	}

	segments := strings.Split(strings.Trim(endpoint, "/"), "/")
	for pattern, tier := range endpointTiers {
		if !strings.Contains(pattern, "{") {
			continue
		}
		patternSegments := strings.Split(strings.Trim(pattern, "/"), "/")
		if len(patternSegments) != len(segments) {
			continue
		}
		if segmentsMatch(patternSegments, segments) {
			return tier
		}
	}
	return TierStandard
}

func segmentsMatch(pattern, actual []string) bool {
	for i, p := range pattern {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			continue
		}
		if p != actual[i] {
			return false
		}
	}
	return true
}
