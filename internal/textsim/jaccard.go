// Package textsim provides the token-similarity heuristics shared by the
// validation gates and the convergence detector: token-Jaccard overlap and
// negation-marker detection.
package textsim

import (
	"strings"
	"unicode"

	"github.com/tsawler/prose/v3"
)

// negationMarkers flag a likely polarity flip between two statements
var negationMarkers = []string{
	"not", "never", "no", "cannot", "impossible", "false", "incorrect",
}

// Tokens lowercases and tokenizes text using the prose pipeline (tagging and
// entity extraction disabled - we only need the tokenizer). Falls back to
// whitespace/punctuation splitting if prose rejects the input.
func Tokens(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithSegmentation(false))
	if err != nil {
		return fallbackTokens(text)
	}

	var tokens []string
	for _, tok := range doc.Tokens() {
		t := normalize(tok.Text)
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return fallbackTokens(text)
	}
	return tokens
}

// fallbackTokens splits on any non-letter/digit rune
func fallbackTokens(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var tokens []string
	for _, f := range fields {
		if t := normalize(f); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// normalize lowercases and strips surrounding punctuation; returns "" for
// tokens with no letters or digits (pure punctuation from the tokenizer).
func normalize(s string) string {
	s = strings.ToLower(strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
	return s
}

// TokenSet returns the set of normalized tokens in text
func TokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range Tokens(text) {
		set[t] = true
	}
	return set
}

// Jaccard computes token-Jaccard similarity between two texts:
// |intersection| / |union| over their token sets. Empty inputs score 0.
func Jaccard(a, b string) float64 {
	setA := TokenSet(a)
	setB := TokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// HasNegation reports whether the text contains any negation marker token
func HasNegation(text string) bool {
	for t := range TokenSet(text) {
		for _, m := range negationMarkers {
			if t == m {
				return true
			}
		}
	}
	return false
}

// NegationMismatch reports whether exactly one of the two texts carries a
// negation marker - the signature of a direct contradiction between
// otherwise-overlapping statements.
func NegationMismatch(a, b string) bool {
	return HasNegation(a) != HasNegation(b)
}
