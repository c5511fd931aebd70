package retrieve

import (
	"regexp"
	"strings"
	"unicode"
)

// Bonus weights for the lexical relevance signal. The overall vector/lexical
// balance lives in Options; these shape only the lexical side.
const (
	phraseBonus    = 0.3
	titleBonus     = 0.2
	listBonus      = 0.2
	densityCeiling = 0.2
)

var listLineRe = regexp.MustCompile(`^\s*([•‣·▪*-]|\d{1,2}[.)、])\s+`)

// LexicalRelevance scores content against a query independently of vector
// similarity: keyword-overlap ratio, a bonus for exact phrase containment,
// bonuses for structural cues (headings, lists), and a capped keyword-density
// bonus. The result lies in [0, 1].
func LexicalRelevance(query, content string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	c := strings.ToLower(content)

	queryWords := wordSet(q)
	if len(queryWords) == 0 {
		return 0
	}
	contentWords := strings.Fields(c)

	matching := 0
	seen := make(map[string]bool, len(queryWords))
	for _, w := range contentWords {
		if queryWords[w] && !seen[w] {
			matching++
			seen[w] = true
		}
	}

	score := float64(matching) / float64(len(queryWords))

	if strings.Contains(c, q) {
		score += phraseBonus
	}

	if hasTitleCue(content) {
		score += titleBonus
	}
	if hasListCue(content) {
		score += listBonus
	}

	if len(contentWords) > 0 {
		density := float64(matching) / float64(len(contentWords))
		score += min(densityCeiling, density*2)
	}

	return min(1.0, score)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}

// hasTitleCue detects heading markers or all-uppercase content.
func hasTitleCue(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			return true
		}
	}
	hasLetter := false
	for _, r := range content {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

// hasListCue detects leading bullet or numeral markers on any line.
func hasListCue(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if listLineRe.MatchString(line) {
			return true
		}
	}
	return false
}
