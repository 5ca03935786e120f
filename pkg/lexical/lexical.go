// Package lexical implements the stopword-filtered, stemmed bag-of-words
// machinery behind the search engine's lexical score L(q, m) (§4.C).
//
// Tokenization follows the teacher's pkg/implicit-matcher/dictionary.go
// CanonicalizeForMatch rules (fold case, collapse separators, preserve
// in-word joiners like apostrophes and hyphens); stopword filtering
// follows pkg/scanner/discovery/registry.go's dual strategy of a
// maintained third-party list backed by a small built-in fallback set.
package lexical

import (
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"
)

var enStopwords = stopwords.MustGet("en")

// fallbackStopwords covers the corpus's built-in backup list for when the
// third-party checker has no opinion (short function words the bundled
// "en" set is sometimes missing, e.g. contractions' stems).
var fallbackStopwords = map[string]bool{
	"im": true, "ive": true, "dont": true, "didnt": true, "isnt": true,
	"youre": true, "theyre": true, "thats": true, "whats": true,
}

func isStopword(tok string) bool {
	if enStopwords.Contains(tok) {
		return true
	}
	return fallbackStopwords[tok]
}

func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘', '-', '–', '—':
		return true
	default:
		return false
	}
}

// Tokenize lowercases, strips punctuation except in-word joiners, and
// splits on whitespace/other separators.
func Tokenize(text string) []string {
	var out strings.Builder
	out.Grow(len(text))
	lastWasSpace := true
	for _, r := range text {
		c := unicode.ToLower(r)
		if c == '’' || c == '‘' {
			c = '\''
		}
		if c == '–' || c == '—' {
			c = '-'
		}
		if unicode.IsLetter(c) || unicode.IsDigit(c) || isJoiner(c) {
			out.WriteRune(c)
			lastWasSpace = false
		} else if !lastWasSpace {
			out.WriteRune(' ')
			lastWasSpace = true
		}
	}
	fields := strings.Fields(out.String())
	return fields
}

// Stems tokenizes, drops stopwords, and stems the remainder into a bag of
// stems, in the order the tokens appear; callers that need frequency use
// StemCounts instead.
func Stems(text string) []string {
	toks := Tokenize(text)
	stems := make([]string, 0, len(toks))
	for _, t := range toks {
		if isStopword(t) {
			continue
		}
		stems = append(stems, Stem(t))
	}
	return stems
}

// StemCounts tokenizes text into a stem -> frequency map, used as the
// per-document term frequency table for BM25-style scoring.
func StemCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, s := range Stems(text) {
		counts[s]++
	}
	return counts
}
