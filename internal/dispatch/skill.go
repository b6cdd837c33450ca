package dispatch

import (
	"regexp"
	"strings"
)

// skillPatterns groups per-skill keyword/phrase regexes for Stage 3.
var skillPatterns = map[string][]*regexp.Regexp{
	"device": {
		regexp.MustCompile(`\b(devices|device|machines|machine|computers|computer|nodes|node|hosts|host)\b`),
		regexp.MustCompile(`\b(list|status|add|update|health)\s+(devices|device|machines|machine)`),
	},
	"script": {
		regexp.MustCompile(`\b(script|scripts|flow|rule)\b`),
		regexp.MustCompile(`\b(run|execute|test)\s+(script|scripts|flow)\b`),
		regexp.MustCompile(`\bautomation\s+script\b`),
	},
	"vault": {
		regexp.MustCompile(`\b(vault|secret|secrets|token|tokens|apikey|api-key|key|keys)\b`),
		regexp.MustCompile(`\b(get|set|store|retrieve)\s+(secret|token|password)`),
	},
	"workspace": {
		regexp.MustCompile(`\b(workspace|project|environment)\b`),
		regexp.MustCompile(`\b(switch|change|create|list)\s+(workspace|project)`),
	},
	"wizops": {
		regexp.MustCompile(`\b(wizard|task|tasks|workflow|workflows)\b`),
		regexp.MustCompile(`\bautomation\s+task\b`),
		regexp.MustCompile(`\b(start|stop|run|execute|automate)\s+(wizard|task)`),
	},
	"network": {
		regexp.MustCompile(`\b(network|connection|host|endpoint)\b`),
		regexp.MustCompile(`\b(scan|connect|check)\s+(network|connection|host)`),
	},
	"user": {
		regexp.MustCompile(`\b(user|account|profile|identity)\b`),
		regexp.MustCompile(`\b(add|remove|manage|create)\s+(user|account)`),
	},
	"help": {
		regexp.MustCompile(`\b(help|guide|tutorial|documentation|reference)\b`),
		regexp.MustCompile(`\b(what|how|where|when|why)\s+(help|guide)`),
	},
}

// skillOrder fixes iteration order so ties are deterministic before the
// "ask" neutral-fallback rule is applied (the rule itself is order
// independent — any tie across 2+ skills falls back to ask regardless of
// which pair is found first).
var skillOrder = []string{"device", "script", "vault", "workspace", "wizops", "network", "user", "help"}

// inferVibeSkill is Stage 3: keyword-pattern scoring skill inference.
// Always returns a skill; "ask" is the neutral fallback on ties or no match.
func inferVibeSkill(userInput string) string {
	lower := strings.ToLower(userInput)

	scores := make(map[string]int)
	for _, skill := range skillOrder {
		score := 0
		for _, pattern := range skillPatterns[skill] {
			if pattern.MatchString(lower) {
				score++
			}
		}
		if score > 0 {
			scores[skill] = score
		}
	}

	if len(scores) == 0 {
		return "ask"
	}

	maxScore := 0
	for _, score := range scores {
		if score > maxScore {
			maxScore = score
		}
	}

	winner := ""
	winnerCount := 0
	for _, skill := range skillOrder {
		if scores[skill] == maxScore {
			winner = skill
			winnerCount++
		}
	}

	if winnerCount != 1 {
		return "ask"
	}
	return winner
}
