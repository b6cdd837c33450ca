package dispatch

import (
	"sort"
	"strings"
	"unicode"
)

// levenshtein computes the edit distance between a and b.
func levenshtein(a, b string) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}

	previous := make([]int, len(b)+1)
	for j := range previous {
		previous[j] = j
	}

	for i, ca := range a {
		current := make([]int, len(b)+1)
		current[0] = i + 1
		for j, cb := range b {
			insertion := previous[j+1] + 1
			deletion := current[j] + 1
			substitution := previous[j]
			if ca != cb {
				substitution++
			}
			current[j+1] = min3(insertion, deletion, substitution)
		}
		previous = current
	}
	return previous[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// matchUcodeCommand is Stage 1: canonical-command exact/fuzzy matching.
// Returns the matched command (empty if none) and a confidence in [0,1].
func matchUcodeCommand(userInput string) (string, float64) {
	if userInput == "" {
		return "", 0.0
	}

	fields := strings.Fields(userInput)
	if len(fields) == 0 {
		return "", 0.0
	}
	firstToken := strings.ToUpper(fields[0])

	if canonical, ok := SubcommandAliases[firstToken]; ok {
		firstToken = canonical
	}

	if isCanonical(firstToken) {
		return firstToken, 1.0
	}

	// Fuzzy match only for command-like tokens, to avoid routing shell
	// commands ("ls", "nc") into Stage 1.
	if len([]rune(firstToken)) < 4 || !isAlpha(firstToken) {
		return "", 0.0
	}

	type candidate struct {
		cmd  string
		dist int
	}
	var candidates []candidate
	for cmd := range CanonicalCommands {
		dist := levenshtein(firstToken, cmd)
		if dist <= 2 {
			candidates = append(candidates, candidate{cmd, dist})
		}
	}
	if len(candidates) == 0 {
		return "", 0.0
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].cmd < candidates[j].cmd
	})
	best := candidates[0]
	confidence := 1.0 - float64(best.dist)*0.1
	if confidence < 0.80 {
		confidence = 0.80
	}
	return best.cmd, confidence
}
