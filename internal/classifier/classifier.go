// Package classifier turns a free-form prompt plus caller context into a
// TaskProfile used by the model router to make a routing decision.
package classifier

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"sync"
	"time"
)

type Intent string

const (
	IntentCode   Intent = "code"
	IntentTest   Intent = "test"
	IntentDocs   Intent = "docs"
	IntentDesign Intent = "design"
	IntentOps    Intent = "ops"
)

type Privacy string

const (
	PrivacyPrivate  Privacy = "private"
	PrivacyInternal Privacy = "internal"
	PrivacyPublic   Privacy = "public"
)

// TaskProfile is the classification output described in spec.md §3.
type TaskProfile struct {
	TaskID         string    `json:"task_id"`
	Intent         Intent    `json:"intent"`
	Privacy        Privacy   `json:"privacy"`
	Size           string    `json:"size"` // small, medium, large
	Urgency        string    `json:"urgency"`
	Workspace      string    `json:"workspace"`
	TokenEstimate  int       `json:"estimated_tokens"`
	Confidence     float64   `json:"confidence"`
	Tags           []string  `json:"tags"`
	Reasons        []string  `json:"reasons"`
	Timestamp      time.Time `json:"timestamp"`
}

// HasTag reports whether the profile carries the given tag.
func (p TaskProfile) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

var intentPatterns = map[Intent][]*regexp.Regexp{
	IntentCode: {
		regexp.MustCompile(`(?i)(refactor|implement|fix|rewrite|generate code|write code)`),
		regexp.MustCompile(`(?i)(function|method|class|module)`),
		regexp.MustCompile(`(?i)(debug|improve|optimize|convert)`),
	},
	IntentTest: {
		regexp.MustCompile(`(?i)(test|unit test|test case|pytest|assertion)`),
		regexp.MustCompile(`(?i)(mock|stub|fixture)`),
		regexp.MustCompile(`(?i)(coverage|validation)`),
	},
	IntentDocs: {
		regexp.MustCompile(`(?i)(document|write.*guide|wiki|readme|docstring)`),
		regexp.MustCompile(`(?i)(explain|describe|specification)`),
		regexp.MustCompile(`(?i)(comment|annotation)`),
	},
	IntentDesign: {
		regexp.MustCompile(`(?i)(architecture|design|pattern|decision)`),
		regexp.MustCompile(`(?i)(approach|strategy|structure)`),
		regexp.MustCompile(`(?i)(api|interface|protocol)`),
	},
	IntentOps: {
		regexp.MustCompile(`(?i)(deploy|build|install|script|automation)`),
		regexp.MustCompile(`(?i)(docker|container|devops)`),
		regexp.MustCompile(`(?i)(setup|configuration)`),
	},
}

// intentOrder fixes map iteration so the "best" pick is deterministic when
// scores tie (matches the Python dict-insertion-order tie-break).
var intentOrder = []Intent{IntentCode, IntentTest, IntentDocs, IntentDesign, IntentOps}

var privatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|secret|key|token|credential)`),
	regexp.MustCompile(`(?i)(api[_-]?key|oauth)`),
	regexp.MustCompile(`(?i)(private|confidential|sensitive)`),
	regexp.MustCompile(`\$\w+\s*=`),
	regexp.MustCompile(`(?i)bearer\s+[a-z0-9]+`),
}

var internalHintPattern = regexp.MustCompile(`(?i)(uDOS|core|wizard|internal)`)
var urgentPattern = regexp.MustCompile(`(?i)(urgent|asap|blocking|critical)`)
var toolingPattern = regexp.MustCompile(`(?i)(file|database|api|network|io)`)
var offlinePattern = regexp.MustCompile(`(?i)(offline|local|no.*internet|no.*network)`)

// Classifier classifies tasks for routing decisions and keeps a bounded
// in-memory history for stats queries.
type Classifier struct {
	mu      sync.Mutex
	history []TaskProfile
	logger  *log.Logger
}

func New() *Classifier {
	return &Classifier{logger: log.New(os.Stdout, "[CLASSIFIER] ", log.LstdFlags)}
}

// Classify produces a TaskProfile for the given prompt and caller context.
// explicitPrivacy, when non-empty, overrides privacy detection entirely.
func (c *Classifier) Classify(taskID, prompt, workspace, urgency, explicitPrivacy string) TaskProfile {
	if workspace == "" {
		workspace = "core"
	}
	if urgency == "" {
		urgency = "normal"
	}

	intent, intentConfidence := detectIntent(prompt)
	tokenEstimate := len(prompt) / 4

	var size string
	switch {
	case tokenEstimate < 2000:
		size = "small"
	case tokenEstimate < 8000:
		size = "medium"
	default:
		size = "large"
	}

	var privacy Privacy
	var privacyConfidence float64
	if explicitPrivacy != "" {
		privacy = Privacy(explicitPrivacy)
		privacyConfidence = 1.0
	} else {
		privacy, privacyConfidence = detectPrivacy(prompt)
	}

	tags := generateTags(prompt, size)

	reasons := []string{
		fmt.Sprintf("Intent: %s (%.0f%%)", intent, intentConfidence*100),
		fmt.Sprintf("Privacy: %s (%.0f%%)", privacy, privacyConfidence*100),
		fmt.Sprintf("Size: %s (%d tokens)", size, tokenEstimate),
	}

	profile := TaskProfile{
		TaskID:        taskID,
		Intent:        intent,
		Privacy:       privacy,
		Size:          size,
		Urgency:       urgency,
		Workspace:     workspace,
		TokenEstimate: tokenEstimate,
		Confidence:    (intentConfidence + privacyConfidence) / 2,
		Tags:          tags,
		Reasons:       reasons,
		Timestamp:     time.Now(),
	}

	c.mu.Lock()
	c.history = append(c.history, profile)
	c.mu.Unlock()

	c.logger.Printf("classified %s: %s/%s/%s (%.0f%% confidence)",
		taskID, intent, size, privacy, profile.Confidence*100)

	return profile
}

func detectIntent(prompt string) (Intent, float64) {
	scores := make(map[Intent]int)
	best := Intent("")
	bestScore := 0
	for _, intent := range intentOrder {
		score := 0
		for _, pattern := range intentPatterns[intent] {
			if pattern.MatchString(prompt) {
				score++
			}
		}
		scores[intent] = score
		if score > bestScore {
			bestScore = score
			best = intent
		}
	}

	if bestScore == 0 {
		return IntentCode, 0.3
	}

	confidence := 0.5 + (float64(bestScore)/3.0)*0.3
	if confidence > 0.95 {
		confidence = 0.95
	}
	return best, confidence
}

func detectPrivacy(prompt string) (Privacy, float64) {
	matches := 0
	for _, pattern := range privatePatterns {
		if pattern.MatchString(prompt) {
			matches++
		}
	}
	if matches > 0 {
		confidence := 0.6 + (float64(matches)/5.0)*0.3
		if confidence > 0.95 {
			confidence = 0.95
		}
		return PrivacyPrivate, confidence
	}

	if internalHintPattern.MatchString(prompt) {
		return PrivacyInternal, 0.7
	}

	return PrivacyInternal, 0.5
}

func generateTags(prompt, size string) []string {
	var tags []string
	if size == "large" {
		tags = append(tags, "long_context")
	}
	if urgentPattern.MatchString(prompt) {
		tags = append(tags, "urgent")
	}
	if toolingPattern.MatchString(prompt) {
		tags = append(tags, "tooling_heavy")
	}
	if offlinePattern.MatchString(prompt) {
		tags = append(tags, "offline_required")
	}
	return tags
}

// Stats summarizes classification history.
type Stats struct {
	TotalClassified int               `json:"total_classified"`
	Intents         map[string]int    `json:"intents"`
	PrivacyLevels   map[string]int    `json:"privacy_levels"`
	AvgConfidence   float64           `json:"avg_confidence"`
}

func (c *Classifier) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) == 0 {
		return Stats{Intents: map[string]int{}, PrivacyLevels: map[string]int{}}
	}

	intents := map[string]int{}
	privacyLevels := map[string]int{}
	var totalConfidence float64

	for _, profile := range c.history {
		intents[string(profile.Intent)]++
		privacyLevels[string(profile.Privacy)]++
		totalConfidence += profile.Confidence
	}

	return Stats{
		TotalClassified: len(c.history),
		Intents:         intents,
		PrivacyLevels:   privacyLevels,
		AvgConfidence:   totalConfidence / float64(len(c.history)),
	}
}
