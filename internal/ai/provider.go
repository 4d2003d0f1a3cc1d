package ai

import "context"

// Analysis is the outcome of running a drawing through label detection and
// content moderation.
type Analysis struct {
	Labels        []string
	IsAppropriate bool
}

type Analyzer interface {
	Analyze(ctx context.Context, image []byte) (Analysis, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
