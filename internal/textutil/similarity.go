package textutil

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// TokenOverlap reports the fraction of a's unique tokens also present in b.
// Returns 0 when a is empty.
func TokenOverlap(a, b *Fingerprint) float64 {
	if a == nil || b == nil || len(a.tokens) == 0 {
		return 0
	}
	matched := 0
	for token := range a.tokens {
		if _, ok := b.tokens[token]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(a.tokens))
}
