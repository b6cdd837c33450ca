// Package policy enforces the Offline-First routing policy: private tasks
// stay local, cloud escalation requires an explicit opt-in, secrets never
// leave the device, and cloud spend stays within the configured budget.
package policy

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Config is the policy's tunable configuration, loaded from the config
// snapshot rather than a standalone JSON file.
type Config struct {
	CloudEnabled           bool
	DailyBudgetUSD         float64
	MonthlyBudgetUSD       float64
	DetectSecrets          bool
	RedactSecretsEnabled   bool
	LogViolations          bool
}

func DefaultConfig() Config {
	return Config{
		CloudEnabled:         false,
		DailyBudgetUSD:       10.0,
		MonthlyBudgetUSD:     200.0,
		DetectSecrets:        true,
		RedactSecretsEnabled: true,
		LogViolations:        true,
	}
}

// Violation records a single policy rule breach.
type Violation struct {
	TaskID    string    `json:"task_id"`
	Rule      string    `json:"rule"`
	Reason    string    `json:"reason"`
	Severity  string    `json:"severity"` // "warning" or "error"
	Timestamp time.Time `json:"timestamp"`
}

const maxViolationHistory = 1000

var secretPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"api_key", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api_secret)['"]?\s*[:=]\s*['"]?[a-zA-Z0-9\-_]{32,}`)},
	{"oauth_token", regexp.MustCompile(`(?i)(oauth|access_token|refresh_token)['"]?\s*[:=]\s*['"]?[a-zA-Z0-9\-_.]{40,}`)},
	{"aws_key", regexp.MustCompile(`(?i)(AKIA|aws_access_key_id)['"]?\s*[:=]\s*['"]?[A-Z0-9]{20}`)},
	{"private_key", regexp.MustCompile(`(?i)(private[_-]?key|-----BEGIN)['"]?\s*[:=]?\s*['"]?[a-zA-Z0-9+/=]{32,}`)},
	{"password", regexp.MustCompile(`(?i)(password)['"]?\s*[:=]\s*['"]?[^\s'"]{8,}`)},
	{"database_url", regexp.MustCompile(`(?i)(database[_-]?url|db[_-]?url|connectionstring)['"]?\s*[:=]\s*['"]?[^\s'"]+`)},
	{"bearer_token", regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-_.]{20,}`)},
}

// Enforcer validates routing decisions against policy and tracks cloud
// spend and violations. Callers construct one explicitly per process
// (no package-level singleton).
type Enforcer struct {
	mu             sync.Mutex
	cfg            Config
	violations     []Violation
	todayCloudCost float64
	logger         *log.Logger
}

func New(cfg Config) *Enforcer {
	return &Enforcer{
		cfg:    cfg,
		logger: log.New(os.Stdout, "[POLICY] ", log.LstdFlags),
	}
}

// ValidateRoute checks a routing decision against all four ordered rules
// and returns (allowed, reason). reason is empty when allowed is true.
func (e *Enforcer) ValidateRoute(taskID, privacy, backend string, estimatedCost float64, prompt string) (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var violations []string

	// Rule 1: private tasks must stay local.
	if strings.EqualFold(privacy, "private") && backend != "local" {
		reason := fmt.Sprintf("private tasks cannot use %s backend", backend)
		violations = append(violations, reason)
		e.recordViolation(taskID, "privacy_enforcement", reason, "error")
	}

	// Rule 2: cloud escalation requires explicit enable.
	if backend != "local" && !e.cfg.CloudEnabled {
		reason := "cloud backend is disabled; set cloud_enabled=true to allow cloud escalation"
		violations = append(violations, reason)
		e.recordViolation(taskID, "cloud_disabled", reason, "error")
	}

	// Rule 3: secret detection.
	if e.cfg.DetectSecrets && prompt != "" {
		secrets := e.detectSecrets(prompt)
		if len(secrets) > 0 && backend != "local" {
			reason := fmt.Sprintf("detected secrets in prompt: %s; cannot escalate to cloud without redaction", strings.Join(secrets, ", "))
			violations = append(violations, reason)
			e.recordViolation(taskID, "secrets_detected", reason, "error")
		}
	}

	// Rule 4: daily budget enforcement.
	if backend != "local" {
		if e.todayCloudCost+estimatedCost > e.cfg.DailyBudgetUSD {
			reason := fmt.Sprintf("daily budget exceeded: current $%.2f, request $%.2f, limit $%.2f",
				e.todayCloudCost, estimatedCost, e.cfg.DailyBudgetUSD)
			violations = append(violations, reason)
			e.recordViolation(taskID, "budget_exceeded", reason, "warning")
		}
	}

	if len(violations) > 0 {
		return false, strings.Join(violations, "; ")
	}
	return true, ""
}

func (e *Enforcer) detectSecrets(text string) []string {
	var detected []string
	for _, sp := range secretPatterns {
		if sp.re.MatchString(text) {
			detected = append(detected, sp.name)
			e.logger.Printf("detected %s in text", sp.name)
		}
	}
	return detected
}

// RedactSecrets replaces every detected secret span with [REDACTED:type].
func (e *Enforcer) RedactSecrets(text string) string {
	result := text
	for _, sp := range secretPatterns {
		result = sp.re.ReplaceAllString(result, "[REDACTED:"+sp.name+"]")
	}
	return result
}

func (e *Enforcer) recordViolation(taskID, rule, reason, severity string) {
	v := Violation{
		TaskID:    taskID,
		Rule:      rule,
		Reason:    reason,
		Severity:  severity,
		Timestamp: time.Now(),
	}
	e.violations = append(e.violations, v)
	if len(e.violations) > maxViolationHistory {
		e.violations = e.violations[len(e.violations)-maxViolationHistory:]
	}
	if e.cfg.LogViolations {
		if severity == "warning" {
			e.logger.Printf("WARN %s: %s", rule, reason)
		} else {
			e.logger.Printf("ERROR %s: %s", rule, reason)
		}
	}
}

// RecordCloudCost adds a cloud API cost to the running daily total.
func (e *Enforcer) RecordCloudCost(amountUSD float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.todayCloudCost += amountUSD
	e.logger.Printf("recorded cloud cost: $%.4f (daily total: $%.2f)", amountUSD, e.todayCloudCost)
}

// ResetDailyBudget zeroes the running daily cost total. The gateway calls
// this when its cost tracker rolls over to a new day.
func (e *Enforcer) ResetDailyBudget() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.todayCloudCost = 0
	e.logger.Println("daily budget reset")
}

// Violations returns a snapshot copy of recorded violations.
func (e *Enforcer) Violations() []Violation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Violation, len(e.violations))
	copy(out, e.violations)
	return out
}

// TodayCloudCost returns the running daily cloud spend.
func (e *Enforcer) TodayCloudCost() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.todayCloudCost
}

// Status is the policy status snapshot exposed over the API.
type Status struct {
	CloudEnabled     bool        `json:"cloud_enabled"`
	DailyBudgetUSD   float64     `json:"daily_budget"`
	TodaySpentUSD    float64     `json:"today_spent"`
	TodayRemainingUSD float64    `json:"today_remaining"`
	MonthlyBudgetUSD float64     `json:"monthly_budget"`
	TotalViolations  int         `json:"total_violations"`
	RecentViolations []Violation `json:"recent_violations"`
}

// GetStatus returns the policy's current budget and violation snapshot.
func (e *Enforcer) GetStatus() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	remaining := e.cfg.DailyBudgetUSD - e.todayCloudCost
	if remaining < 0 {
		remaining = 0
	}

	recent := e.violations
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	recentCopy := make([]Violation, len(recent))
	copy(recentCopy, recent)

	return Status{
		CloudEnabled:      e.cfg.CloudEnabled,
		DailyBudgetUSD:    e.cfg.DailyBudgetUSD,
		TodaySpentUSD:     e.todayCloudCost,
		TodayRemainingUSD: remaining,
		MonthlyBudgetUSD:  e.cfg.MonthlyBudgetUSD,
		TotalViolations:   len(e.violations),
		RecentViolations:  recentCopy,
	}
}
