// Package similarity finds cached work items that look like duplicates of a
// proposed title and description.
package similarity

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// MaxKeywords caps how many keywords are taken from a text.
const MaxKeywords = 10

var nonWord = regexp.MustCompile(`[^\w\s]`)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "have": true,
	"has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "should": true, "could": true, "may": true,
	"might": true, "can": true, "to": true, "of": true, "in": true, "on": true,
	"at": true, "for": true, "with": true, "from": true, "by": true, "as": true,
	"and": true, "or": true, "but": true, "not": true, "it": true, "this": true,
	"that": true, "these": true, "those": true, "i": true, "we": true,
	"you": true, "he": true, "she": true, "they": true,
}

// ExtractKeywords lowercases text, turns punctuation into spaces and keeps
// the first MaxKeywords words longer than two characters that are not
// stopwords. Duplicates are kept.
func ExtractKeywords(text string) []string {
	if text == "" {
		return []string{}
	}
	cleaned := nonWord.ReplaceAllString(strings.ToLower(text), " ")
	out := make([]string, 0, MaxKeywords)
	for _, w := range strings.Fields(cleaned) {
		if len(w) <= 2 || stopwords[w] {
			continue
		}
		out = append(out, w)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

func keywordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, k := range ExtractKeywords(text) {
		set[k] = true
	}
	return set
}

// TextSimilarity is the Jaccard index of the two keyword sets, scaled to
// 0..100. It is 0 when either side has no keywords.
func TextSimilarity(a, b string) float64 {
	sa, sb := keywordSet(a), keywordSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for k := range sa {
		if sb[k] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union) * 100
}

// Score weighs title similarity at 70% and description similarity at 30%,
// rounded to the nearest integer. The description term only counts when both
// descriptions are non-empty.
func Score(title1, title2, desc1, desc2 string) int {
	score := TextSimilarity(title1, title2) * 0.7
	if desc1 != "" && desc2 != "" {
		score += TextSimilarity(desc1, desc2) * 0.3
	}
	return int(math.Round(score))
}

// Reason describes a match by the title keywords the two sides share.
func Reason(title1, title2 string) string {
	other := keywordSet(title2)
	var shared []string
	seen := make(map[string]bool)
	for _, k := range ExtractKeywords(title1) {
		if other[k] && !seen[k] {
			seen[k] = true
			shared = append(shared, fmt.Sprintf("%q", k))
		}
	}
	if len(shared) == 0 {
		return "Similar title"
	}
	if len(shared) > 3 {
		shared = shared[:3]
	}
	return "Similar keywords: " + strings.Join(shared, ", ")
}
