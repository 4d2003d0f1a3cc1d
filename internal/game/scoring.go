package game

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"

	"github.com/sketchdash/sketchdash/internal/ai"
)

// ErrMissingEmbedding signals that a session's prompt was stored without its
// embedding. The score degrades to 0 but the caller should surface the data
// integrity problem.
var ErrMissingEmbedding = errors.New("prompt embedding missing")

// Scorer turns detected labels and a prompt into a 0..100 score. An exact
// label match scores 100 without any embedding calls; otherwise the labels
// are embedded, averaged, and compared to the prompt embedding by cosine
// similarity.
type Scorer struct {
	embedder ai.Embedder
}

func NewScorer(embedder ai.Embedder) *Scorer {
	return &Scorer{embedder: embedder}
}

func (sc *Scorer) Score(ctx context.Context, labels []string, promptName string, promptEmbedding []float64) (int, error) {
	if promptName == "" {
		return 0, nil
	}

	lower := lo.Map(labels, func(l string, _ int) string { return strings.ToLower(l) })
	if lo.Contains(lower, strings.ToLower(promptName)) {
		return 100, nil
	}

	if len(promptEmbedding) == 0 {
		return 0, ErrMissingEmbedding
	}
	if len(labels) == 0 {
		return 0, nil
	}

	embeddings := make([][]float64, 0, len(labels))
	for _, label := range labels {
		vec, err := sc.embedder.Embed(ctx, label)
		if err != nil {
			return 0, fmt.Errorf("embedding label %q: %w", label, err)
		}
		embeddings = append(embeddings, vec)
	}

	similarity := cosineSimilarity(averageVectors(embeddings), promptEmbedding)
	score := int(math.Round(similarity * 100))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}

func averageVectors(vecs [][]float64) []float64 {
	if len(vecs) == 0 {
		return nil
	}
	avg := make([]float64, len(vecs[0]))
	for _, vec := range vecs {
		for i := range avg {
			if i < len(vec) {
				avg[i] += vec[i]
			}
		}
	}
	for i := range avg {
		avg[i] /= float64(len(vecs))
	}
	return avg
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	for _, v := range a {
		magA += v * v
	}
	for _, v := range b {
		magB += v * v
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
