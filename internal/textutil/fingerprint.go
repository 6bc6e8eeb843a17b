// Package textutil provides token fingerprints and cosine similarity for
// name matching.
//
// Fingerprints use term frequency vectors normalized for efficient
// comparison. The tokenization process lowercases text, splits on
// non-alphanumeric characters, and filters tokens shorter than 3 characters.
package textutil

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// tokenSplitPattern matches non-alphanumeric character sequences for tokenization.
var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

// diacriticFolder strips combining marks so accented channel and
// organization names compare equal to their ASCII spellings.
var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fingerprint represents a term-frequency vector for text similarity comparison.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint creates a fingerprint from the provided text.
// Returns nil if the text produces no valid tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &Fingerprint{
		tokens: counts,
		norm:   math.Sqrt(norm),
	}
}

// Tokenize splits text into lowercase tokens, folding diacritics and
// filtering short tokens.
func Tokenize(text string) []string {
	if folded, _, err := transform.String(diacriticFolder, text); err == nil {
		text = folded
	}
	lowered := strings.ToLower(text)
	raw := tokenSplitPattern.Split(lowered, -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		token = strings.TrimSpace(token)
		if len(token) < 3 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// TokenCount returns the number of unique tokens in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}

// ContainsToken reports whether the fingerprint carries the given token.
func (f *Fingerprint) ContainsToken(token string) bool {
	if f == nil {
		return false
	}
	_, ok := f.tokens[strings.ToLower(token)]
	return ok
}
