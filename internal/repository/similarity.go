package repository

import (
	"math"
	"sort"

	"docrag/internal/model"
)

// CosineSimilarity returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rankMatches orders by descending similarity, then ascending id, and keeps the first count.
func rankMatches(matches []model.ChunkMatch, count int) []model.ChunkMatch {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ID < matches[j].ID
	})
	if count < len(matches) {
		matches = matches[:count]
	}
	return matches
}
