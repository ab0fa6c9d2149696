package domain

import "math"

// Embeddings arrive from layers with differing dimensionality. Before any
// similarity is computed the shorter vector is zero-padded to the longer's
// length and both are L2-normalized; padding adds no spurious similarity
// because padded components contribute zero to the dot product.

// CosineSimilarity returns the cosine similarity of two embeddings after
// dimension alignment. Zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		var x, y float64
		if i < len(a) {
			x = float64(a[i])
		}
		if i < len(b) {
			y = float64(b[i])
		}
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MeanPairwiseSimilarity is the coherence of a set of embeddings: the mean
// cosine similarity over all pairs, defined as 1.0 for sets of one or fewer.
func MeanPairwiseSimilarity(embeddings [][]float32) float64 {
	if len(embeddings) <= 1 {
		return 1.0
	}
	var sum float64
	var pairs int
	for i := 0; i < len(embeddings); i++ {
		for j := i + 1; j < len(embeddings); j++ {
			sum += CosineSimilarity(embeddings[i], embeddings[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}
