package knowledge

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
)

// embedText runs the embedder for a single text and normalizes the
// response into one vector. Every shape the embedder can produce is
// handled here so callers never see a partial response: a nil
// response, zero embeddings, or an empty vector all collapse into
// ErrEmptyEmbedding.
func (s *Store) embedText(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
	})
	if err != nil {
		return pgvector.Vector{}, err
	}

	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, ErrEmptyEmbedding
	}

	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}
