package openai

import (
	"math"

	"github.com/notebase-ai/notebase/internal/domain"
)

// CosineSimilarity returns dot(a,b) / (||a|| * ||b||) in [-1, 1].
// Vectors of different lengths come from different embedding models and are
// never comparable, so the mismatch is a hard error. A zero-norm vector
// yields similarity 0.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, domain.ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}
