package ratelimit

import (
	"context"
	"log"
	"os"
	"sync"
	"time"
)

// tierCounters tracks one tier's sliding windows for a single device.
type tierCounters struct {
	minuteCount int
	hourCount   int
	dayCount    int
	minuteStart time.Time
	hourStart   time.Time
	dayStart    time.Time
	lastRequest time.Time
	blockedUntil time.Time
}

// deviceState holds all tier counters for one device.
type deviceState struct {
	tiers map[Tier]*tierCounters
}

func newDeviceState() *deviceState {
	return &deviceState{tiers: map[Tier]*tierCounters{}}
}

func (d *deviceState) tier(t Tier) *tierCounters {
	tc, ok := d.tiers[t]
	if !ok {
		now := time.Now()
		tc = &tierCounters{minuteStart: now, hourStart: now, dayStart: now}
		d.tiers[t] = tc
	}
	return tc
}

// Result is the outcome of a Check call.
type Result struct {
	Allowed         bool
	Tier            Tier
	RetryAfter      time.Duration
	LimitMinute     int
	RemainingMinute int
}

// requestLogEntry is a bounded audit trail entry used for global stats.
type requestLogEntry struct {
	DeviceID  string
	Tier      Tier
	Allowed   bool
	Timestamp time.Time
}

const maxRequestLog = 10000

// Config tunes the limiter's optional distributed backing.
type Config struct {
	// RedisAddr, when set, mirrors device blocks to Redis so every Wizard
	// instance in a multi-instance deployment honors a block placed by any
	// one of them. Per-request sliding-window counters stay local.
	RedisAddr string
}

// Limiter enforces per-device, per-tier sliding-window admission control.
// It owns all device rate-limit state exclusively; nothing else mutates it.
type Limiter struct {
	mu      sync.Mutex
	devices map[string]*deviceState
	log     []requestLogEntry
	limits  map[Tier]TierLimits
	logger  *log.Logger
	redis   *RedisBlockStore
}

func New() *Limiter {
	return NewWithConfig(Config{})
}

// NewWithConfig builds a Limiter, wiring a RedisBlockStore when cfg.RedisAddr
// is set.
func NewWithConfig(cfg Config) *Limiter {
	l := &Limiter{
		devices: map[string]*deviceState{},
		limits:  DefaultTierLimits,
		logger:  log.New(os.Stdout, "[RATE-LIMIT] ", log.LstdFlags),
	}
	if cfg.RedisAddr != "" {
		l.redis = NewRedisBlockStore(cfg.RedisAddr)
	}
	return l
}

// Check evaluates whether a request from deviceID against endpoint is
// allowed, without incrementing counters (windows that have expired are
// reset). Call Record after the downstream call
// completes to account for the request.
func (l *Limiter) Check(deviceID, endpoint string) Result {
	tier := TierForEndpoint(endpoint)
	limits := l.limits[tier]

	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.devices[deviceID]
	if !ok {
		state = newDeviceState()
		l.devices[deviceID] = state
	}
	tc := state.tier(tier)
	now := time.Now()
	resetWindows(tc, now)

	if now.Before(tc.blockedUntil) {
		return Result{Allowed: false, Tier: tier, RetryAfter: tc.blockedUntil.Sub(now)}
	}
	if l.redis != nil {
		if blocked, ttl := l.redis.IsBlocked(context.Background(), deviceID, tier); blocked {
			tc.blockedUntil = now.Add(ttl)
			return Result{Allowed: false, Tier: tier, RetryAfter: ttl}
		}
	}

	if !tc.lastRequest.IsZero() {
		elapsed := now.Sub(tc.lastRequest)
		if elapsed < limits.Cooldown {
			return Result{Allowed: false, Tier: tier, RetryAfter: limits.Cooldown - elapsed}
		}
	}

	if tc.minuteCount >= limits.PerMinute {
		return Result{Allowed: false, Tier: tier, RetryAfter: time.Minute - now.Sub(tc.minuteStart)}
	}
	if tc.hourCount >= limits.PerHour {
		return Result{Allowed: false, Tier: tier, RetryAfter: time.Hour - now.Sub(tc.hourStart)}
	}
	if tc.dayCount >= limits.PerDay {
		return Result{Allowed: false, Tier: tier, RetryAfter: 24*time.Hour - now.Sub(tc.dayStart)}
	}

	return Result{
		Allowed:         true,
		Tier:            tier,
		LimitMinute:     limits.PerMinute,
		RemainingMinute: limits.PerMinute - tc.minuteCount,
	}
}

// Record accounts for a completed request. When allowed is true it
// increments counters and updates last-request; every call, allowed or
// not, is appended to the request log.
func (l *Limiter) Record(deviceID, endpoint string, allowed bool) {
	tier := TierForEndpoint(endpoint)

	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.devices[deviceID]
	if !ok {
		state = newDeviceState()
		l.devices[deviceID] = state
	}
	tc := state.tier(tier)
	now := time.Now()
	resetWindows(tc, now)

	if allowed {
		tc.minuteCount++
		tc.hourCount++
		tc.dayCount++
		tc.lastRequest = now
	}

	l.log = append(l.log, requestLogEntry{DeviceID: deviceID, Tier: tier, Allowed: allowed, Timestamp: now})
	if len(l.log) > maxRequestLog {
		l.log = l.log[len(l.log)/2:]
	}
}

func resetWindows(tc *tierCounters, now time.Time) {
	if now.Sub(tc.minuteStart) > time.Minute {
		tc.minuteCount = 0
		tc.minuteStart = now
	}
	if now.Sub(tc.hourStart) > time.Hour {
		tc.hourCount = 0
		tc.hourStart = now
	}
	if now.Sub(tc.dayStart) > 24*time.Hour {
		tc.dayCount = 0
		tc.dayStart = now
	}
}

// BlockDevice blocks a device's tier until now+duration. tier="" blocks all
// known tiers for the device.
func (l *Limiter) BlockDevice(deviceID string, tier Tier, duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.devices[deviceID]
	if !ok {
		state = newDeviceState()
		l.devices[deviceID] = state
	}
	until := time.Now().Add(duration)
	if tier != "" {
		state.tier(tier).blockedUntil = until
		l.syncBlock(deviceID, tier, duration)
		return
	}
	for _, t := range []Tier{TierLight, TierStandard, TierHeavy, TierExpensive} {
		state.tier(t).blockedUntil = until
		l.syncBlock(deviceID, t, duration)
	}
}

// syncBlock mirrors a block to Redis when the limiter was wired with one.
// Best-effort: a sync failure is logged, not returned, since the local block
// already took effect.
func (l *Limiter) syncBlock(deviceID string, tier Tier, duration time.Duration) {
	if l.redis == nil {
		return
	}
	if err := l.redis.Block(context.Background(), deviceID, tier, duration); err != nil {
		l.logger.Printf("failed to sync block for %s/%s to redis: %v", deviceID, tier, err)
	}
}

// syncUnblock mirrors an unblock to Redis when the limiter was wired with one.
func (l *Limiter) syncUnblock(deviceID string, tier Tier) {
	if l.redis == nil {
		return
	}
	if err := l.redis.Unblock(context.Background(), deviceID, tier); err != nil {
		l.logger.Printf("failed to sync unblock for %s/%s to redis: %v", deviceID, tier, err)
	}
}

// UnblockDevice clears a block for a device's tier, or all tiers if tier=="".
func (l *Limiter) UnblockDevice(deviceID string, tier Tier) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.devices[deviceID]
	if !ok {
		return
	}
	if tier != "" {
		state.tier(tier).blockedUntil = time.Time{}
		l.syncUnblock(deviceID, tier)
		return
	}
	for t, tc := range state.tiers {
		tc.blockedUntil = time.Time{}
		l.syncUnblock(deviceID, t)
	}
}

// DeviceStats summarizes one device's current counters per tier.
type DeviceStats struct {
	DeviceID string                    `json:"device_id"`
	Tiers    map[Tier]TierCounterView  `json:"tiers"`
}

type TierCounterView struct {
	MinuteCount int       `json:"minute_count"`
	HourCount   int       `json:"hour_count"`
	DayCount    int       `json:"day_count"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
}

func (l *Limiter) GetDeviceStats(deviceID string) DeviceStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := DeviceStats{DeviceID: deviceID, Tiers: map[Tier]TierCounterView{}}
	state, ok := l.devices[deviceID]
	if !ok {
		return stats
	}
	for tier, tc := range state.tiers {
		view := TierCounterView{MinuteCount: tc.minuteCount, HourCount: tc.hourCount, DayCount: tc.dayCount}
		if !tc.blockedUntil.IsZero() && time.Now().Before(tc.blockedUntil) {
			until := tc.blockedUntil
			view.BlockedUntil = &until
		}
		stats.Tiers[tier] = view
	}
	return stats
}

// GlobalStats summarizes the limiter's state across all devices.
type GlobalStats struct {
	ActiveDevices       int            `json:"active_devices"`
	RequestsLastMinute  int            `json:"requests_last_minute"`
	RequestsLastHour    int            `json:"requests_last_hour"`
	BlockedLastMinute   int            `json:"blocked_last_minute"`
	TierBreakdown       map[Tier]int   `json:"tier_breakdown"`
	LogSize             int            `json:"log_size"`
}

func (l *Limiter) GetGlobalStats() GlobalStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	stats := GlobalStats{
		ActiveDevices: len(l.devices),
		TierBreakdown: map[Tier]int{},
		LogSize:       len(l.log),
	}
	for _, entry := range l.log {
		stats.TierBreakdown[entry.Tier]++
		if now.Sub(entry.Timestamp) <= time.Minute {
			stats.RequestsLastMinute++
			if !entry.Allowed {
				stats.BlockedLastMinute++
			}
		}
		if now.Sub(entry.Timestamp) <= time.Hour {
			stats.RequestsLastHour++
		}
	}
	return stats
}
