// Package store keeps embedded patient chunks per scan session and ranks
// them against a query vector by cosine similarity.
package store

import (
	"context"
	"math"
	"sort"

	"github.com/medflow/medinsight/internal/scan/domain"
)

// Store is the vector store used by the scan pipeline
type Store interface {
	Add(ctx context.Context, chunks []domain.Chunk) error
	Search(ctx context.Context, sessionID string, query []float32, k int) ([]domain.ScoredChunk, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or with zero magnitude score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank scores chunks against query and returns the k best, highest first.
// Equal scores keep chunk position order.
func Rank(chunks []domain.Chunk, query []float32, k int) []domain.ScoredChunk {
	scored := make([]domain.ScoredChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = domain.ScoredChunk{Chunk: c, Score: Cosine(c.Embedding, query)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Position < scored[j].Position
	})
	if k >= 0 && k < len(scored) {
		scored = scored[:k]
	}
	return scored
}
