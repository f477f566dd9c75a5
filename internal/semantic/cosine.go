package semantic

import (
	"math"
	"sort"
)

// Cosine returns dot(a,b)/(|a||b|). It is 0 when either vector has zero
// length or norm, or when the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	// One square root keeps v against itself or -v exact.
	sim := dot / math.Sqrt(na*nb)
	return math.Max(-1, math.Min(1, sim))
}

// Scored is a candidate position paired with its similarity to the query.
type Scored struct {
	Index      int
	Similarity float64
}

// Rank scores every candidate against query, drops those below
// minSimilarity, and returns at most topK in descending order. Exact ties
// keep candidate order.
func Rank(query []float32, candidates [][]float32, minSimilarity float64, topK int) []Scored {
	var out []Scored
	for i, c := range candidates {
		sim := Cosine(query, c)
		if sim < minSimilarity {
			continue
		}
		out = append(out, Scored{Index: i, Similarity: sim})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
