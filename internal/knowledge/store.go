// Package knowledge implements the document store: knowledge-base
// passages indexed by embedding in PostgreSQL + pgvector.
//
// The embedder and the vector index are external collaborators. This
// package owns the boundary to both: all embedding responses are
// normalized in embedText, and search results are converted to the
// package's Document type before they reach callers.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/voyago/voyago/internal/log"
)

// searchTimeout bounds embedding generation plus vector search for one
// query, so a slow index cannot block the chat request indefinitely.
const searchTimeout = 10 * time.Second

// ErrEmptyEmbedding indicates the embedder returned a response with no
// usable vector. All unrecognized embedder response shapes map here.
var ErrEmptyEmbedding = errors.New("embedder returned no embedding")

// Querier defines the database operations the store needs.
// Interfaces are defined by the consumer; *Queries is the production
// implementation, tests use a mock.
type Querier interface {
	UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error
	SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error)
	CountDocuments(ctx context.Context) (int64, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Store manages knowledge documents with vector search.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   log.Logger
}

// New creates a Store. A nil logger falls back to a no-op logger.
func New(querier Querier, embedder ai.Embedder, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		queries:  querier,
		embedder: embedder,
		logger:   logger,
	}
}

// Add embeds a document's content and upserts it into the index.
// Re-indexing the same ID replaces the stored passage.
func (s *Store) Add(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return errors.New("document ID must not be empty")
	}

	embedding, err := s.embedText(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	if err := s.queries.UpsertDocument(ctx, UpsertDocumentParams{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: embedding,
	}); err != nil {
		return fmt.Errorf("upserting document %q: %w", doc.ID, err)
	}

	s.logger.Debug("added document", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Query returns the k documents most similar to the query text, in
// relevance-descending order. An empty result with nil error means the
// index holds nothing relevant; errors mean retrieval itself failed.
func (s *Store) Query(ctx context.Context, query string, k int) ([]Document, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	embedding, err := s.embedText(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.queries.SearchDocuments(queryCtx, SearchDocumentsParams{
		QueryEmbedding: embedding,
		ResultLimit:    k,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search timeout: %w", err)
		}
		return nil, fmt.Errorf("vector search: %w", err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, Document{
			ID:        row.ID,
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		})
	}

	s.logger.Debug("retrieved documents", "count", len(docs), "k", k)
	return docs, nil
}

// Count returns the number of indexed documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	count, err := s.queries.CountDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// Delete removes a document from the index.
func (s *Store) Delete(ctx context.Context, docID string) error {
	if err := s.queries.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("deleting document %q: %w", docID, err)
	}
	s.logger.Debug("deleted document", "id", docID)
	return nil
}
