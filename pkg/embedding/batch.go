package embedding

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// defaultBatchConcurrency bounds how many concurrent provider calls
// GetEmbeddingBatch issues, matching the teacher's
// pkg/rag/embed.Embedder default maxConcurrency.
const defaultBatchConcurrency = 5

// GetEmbeddingBatch embeds each text concurrently (bounded by
// defaultBatchConcurrency) and returns vectors in input order. The
// pipeline does not call it: dimension migration and rescan ingest
// embed one text at a time through GetEmbedding.
func (a *Adapter) GetEmbeddingBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultBatchConcurrency)

	for i, text := range texts {
		g.Go(func() error {
			out[i] = a.GetEmbedding(ctx, text)
			return nil
		})
	}
	_ = g.Wait() // GetEmbedding never returns an error; zero vectors mark failures.
	return out
}
