package knowledge

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DBTX is the subset of pgx pool/tx behavior the queries need.
// Satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UpsertDocumentParams are the inputs for UpsertDocument.
type UpsertDocumentParams struct {
	ID        string
	Content   string
	Embedding pgvector.Vector
}

// SearchDocumentsParams are the inputs for SearchDocuments.
type SearchDocumentsParams struct {
	QueryEmbedding pgvector.Vector
	ResultLimit    int
}

// SearchDocumentsRow is one vector-search result row.
type SearchDocumentsRow struct {
	ID         string
	Content    string
	CreatedAt  time.Time
	Similarity float32
}

// Queries runs the document SQL against a pgx connection source.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to the given connection source.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const upsertDocument = `
INSERT INTO documents (id, content, embedding)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE
SET content = EXCLUDED.content, embedding = EXCLUDED.embedding
`

// UpsertDocument inserts or replaces a document and its embedding.
func (q *Queries) UpsertDocument(ctx context.Context, arg UpsertDocumentParams) error {
	_, err := q.db.Exec(ctx, upsertDocument, arg.ID, arg.Content, arg.Embedding)
	return err
}

const searchDocuments = `
SELECT id, content, created_at, 1 - (embedding <=> $1) AS similarity
FROM documents
ORDER BY embedding <=> $1
LIMIT $2
`

// SearchDocuments returns the documents nearest to the query embedding,
// ordered by descending cosine similarity.
func (q *Queries) SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error) {
	rows, err := q.db.Query(ctx, searchDocuments, arg.QueryEmbedding, arg.ResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchDocumentsRow
	for rows.Next() {
		var r SearchDocumentsRow
		if err := rows.Scan(&r.ID, &r.Content, &r.CreatedAt, &r.Similarity); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

const countDocuments = `SELECT count(*) FROM documents`

// CountDocuments returns the total number of indexed documents.
func (q *Queries) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countDocuments).Scan(&count)
	return count, err
}

const deleteDocument = `DELETE FROM documents WHERE id = $1`

// DeleteDocument removes a document by ID.
func (q *Queries) DeleteDocument(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, deleteDocument, id)
	return err
}
