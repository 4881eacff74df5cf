// Package vecindex provides vector similarity search over knowledge chunks.
//
// Two implementations share the Index contract: Postgres backed by pgvector
// for production, and Memory for tests and for deployments without a
// database. Callers that find no usable index fall back to lexical
// retrieval; the index is an accelerator, not a requirement.
package vecindex

import (
	"context"

	"github.com/roteiro-ai/roteiro/internal/chunker"
)

// Result is a single vector search hit.
type Result struct {
	Chunk      chunker.Chunk
	Similarity float64
}

// Index stores embedded chunks and answers cosine-similarity queries.
//
// Upsert is idempotent on chunk ID: re-indexing the same source replaces
// prior vectors instead of duplicating them. Search returns results ordered
// by similarity descending, already filtered by minSimilarity.
type Index interface {
	Upsert(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int, minSimilarity float64) ([]Result, error)
	Count(ctx context.Context) (int, error)
	DeleteBySource(ctx context.Context, sourceFile string) (int, error)
}
