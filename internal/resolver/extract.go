package resolver

import (
	"strings"
	"unicode"
)

// stopWords are capitalized tokens that are never name candidates:
// articles, conjunctions, prepositions, weekday/month names, pronouns.
// Sentence-initial capitalized words that are not in this list will
// still over-match; downstream consumers tolerate the false positives.
var stopWords = map[string]bool{
	// Articles and determiners
	"the": true, "a": true, "an": true, "this": true, "that": true,
	"these": true, "those": true,
	// Conjunctions
	"and": true, "or": true, "but": true, "nor": true, "so": true,
	"yet": true, "if": true, "because": true, "while": true,
	// Prepositions
	"in": true, "on": true, "at": true, "to": true, "for": true,
	"of": true, "with": true, "by": true, "from": true, "about": true,
	"after": true, "before": true, "over": true, "under": true,
	// Pronouns
	"i": true, "we": true, "you": true, "he": true, "she": true,
	"it": true, "they": true, "me": true, "him": true, "her": true,
	"us": true, "them": true, "my": true, "our": true, "your": true,
	"his": true, "its": true, "their": true,
	// Weekdays
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	// Months
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// ExtractNames returns candidate entity names from free text using the
// capitalized-token heuristic: a token is a candidate if it starts with
// an uppercase letter and is not a stop word; adjacent candidates merge
// into one multi-word name. Order of first appearance is preserved and
// duplicates are dropped.
func ExtractNames(text string) []string {
	tokens := strings.Fields(text)

	var names []string
	seen := make(map[string]bool)
	var run []string

	flush := func() {
		if len(run) == 0 {
			return
		}
		name := strings.Join(run, " ")
		run = run[:0]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, token := range tokens {
		word := strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word == "" || !isCandidate(word) {
			flush()
			continue
		}
		run = append(run, word)
		// Trailing punctuation on the source token ends the run:
		// "Acme, Globex" is two names, not one.
		if !strings.HasSuffix(token, word) {
			flush()
		}
	}
	flush()

	return names
}

func isCandidate(word string) bool {
	runes := []rune(word)
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	return !stopWords[strings.ToLower(word)]
}
