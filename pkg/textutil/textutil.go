// Package textutil has the small, dependency-free text helpers
// shared by the local embedding provider and the namer's fallback
// path: tokenization and frequency-ranked keyword extraction.
package textutil

import (
	"sort"
	"strings"
	"unicode"
)

// Tokenize splits text into lowercased runs of letters/digits.
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// TopTokens returns up to n of the most frequent tokens in text with
// length >= minLen, excluding common English stopwords. Ties break
// alphabetically so the result is deterministic.
func TopTokens(text string, n, minLen int) []string {
	counts := make(map[string]int)
	for _, tok := range Tokenize(text) {
		if len(tok) < minLen || stopwords[tok] {
			continue
		}
		counts[tok]++
	}
	type kv struct {
		tok   string
		count int
	}
	kvs := make([]kv, 0, len(counts))
	for tok, c := range counts {
		kvs = append(kvs, kv{tok, c})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].count != kvs[j].count {
			return kvs[i].count > kvs[j].count
		}
		return kvs[i].tok < kvs[j].tok
	})
	if len(kvs) > n {
		kvs = kvs[:n]
	}
	out := make([]string, len(kvs))
	for i, k := range kvs {
		out[i] = k.tok
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "all": true, "can": true, "her": true, "was": true, "one": true,
	"our": true, "out": true, "day": true, "get": true, "has": true, "him": true,
	"his": true, "how": true, "man": true, "new": true, "now": true, "old": true,
	"see": true, "two": true, "way": true, "who": true, "boy": true, "did": true,
	"its": true, "let": true, "put": true, "say": true, "she": true, "too": true,
	"use": true, "with": true, "that": true, "this": true, "from": true, "they": true,
	"have": true, "been": true, "were": true, "will": true, "into": true, "your": true,
}
