// Package rag assembles retrieval context for the response pipeline.
//
// The assembler merges vector and lexical search results, weights them,
// deduplicates by chunk identity, formats the surviving chunks into a
// budgeted context block, and reports which retrieval tier actually served
// the query. Degradation is silent: when the vector index or embedding
// provider is unusable the caller still gets a context, just from a lower
// tier.
package rag

import (
	"errors"

	"github.com/roteiro-ai/roteiro/internal/chunker"
)

// Retrieval tiers, best first. TierNone means retrieval produced nothing
// and the context carries only the fallback instruction.
const (
	TierVector  = "vector"
	TierLexical = "lexical"
	TierNone    = "none"
)

// ErrRetrieverNotReady reports that no retrieval tier can serve queries:
// the lexical retriever has never been fitted. This is the only fatal
// condition in the pipeline; everything above lexical degrades silently.
var ErrRetrieverNotReady = errors.New("rag: no retriever is ready, index the knowledge base first")

// SearchResult is one retrieved chunk with its raw and weighted scores.
// FromVector records which tier produced it after merging.
type SearchResult struct {
	Chunk         chunker.Chunk
	RawScore      float64
	WeightedScore float64
	FromVector    bool
}

// Context is the assembled retrieval output for one query.
type Context struct {
	Query       string
	Results     []SearchResult
	Confidence  float64
	ContextText string
	Sources     []string
	TierUsed    string
}
