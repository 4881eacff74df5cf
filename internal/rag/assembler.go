package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roteiro-ai/roteiro/internal/chunker"
	"github.com/roteiro-ai/roteiro/internal/embed"
	"github.com/roteiro-ai/roteiro/internal/lexical"
	"github.com/roteiro-ai/roteiro/internal/log"
	"github.com/roteiro-ai/roteiro/internal/vecindex"
)

// Priority marker thresholds for formatted context blocks. Chunks below
// markerImportant carry no marker.
const (
	markerCritical  = 0.9
	markerImportant = 0.7
)

// Placeholder emitted when retrieval finds nothing. Never an empty string:
// downstream prompt construction relies on context_text being present.
const noInformationPlaceholder = "Nenhuma informação específica encontrada na base de conhecimento para esta pergunta. Oriente o usuário a consultar um profissional de saúde."

// Assembler merges vector and lexical retrieval into a single budgeted
// context. The vector side is optional; the lexical retriever is the floor
// the assembler always stands on.
//
// Assembler is safe for concurrent use.
type Assembler struct {
	embedder embed.Provider
	index    vecindex.Index
	lexical  *lexical.Retriever
	budget   int
	logger   log.Logger
}

// NewAssembler creates an Assembler. index may be nil when no vector store
// is configured; embedder may be the null provider. budget is the maximum
// length of the formatted context text in characters.
func NewAssembler(embedder embed.Provider, index vecindex.Index, lex *lexical.Retriever, budget int, logger log.Logger) *Assembler {
	if embedder == nil {
		embedder = embed.NewNull()
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Assembler{
		embedder: embedder,
		index:    index,
		lexical:  lex,
		budget:   budget,
		logger:   logger,
	}
}

// Assemble retrieves, merges, ranks, and formats context for query.
//
// The vector tier is tried first when the index and embedder are usable;
// the lexical tier always runs as a hedge against index staleness. Vector
// failures are never escalated, they narrow the tier. The only error is
// ErrRetrieverNotReady when the lexical retriever has never been fitted.
func (a *Assembler) Assemble(ctx context.Context, query string, maxChunks int, minSimilarity float64) (*Context, error) {
	topK := maxChunks * 2 // over-fetch, merge and ranking filter below

	merged := make(map[string]SearchResult)
	tier := TierLexical

	if a.index != nil && a.embedder.Available() {
		if vec := a.embedder.Embed(ctx, query); vec != nil {
			hits, err := a.index.Search(ctx, vec, topK, minSimilarity)
			if err != nil {
				a.logger.Warn("vector search failed, narrowing to lexical tier", "error", err)
			} else {
				tier = TierVector
				for _, h := range hits {
					merged[h.Chunk.ID] = SearchResult{
						Chunk:         h.Chunk,
						RawScore:      h.Similarity,
						WeightedScore: h.Similarity * h.Chunk.Priority,
						FromVector:    true,
					}
				}
			}
		}
	}

	lexHits, err := a.lexical.Search(query, topK)
	if err != nil {
		if tier == TierVector && len(merged) > 0 {
			// Vector tier already produced results; a lexical failure
			// narrows the hedge instead of failing the query.
			a.logger.Warn("lexical search failed, serving vector results only", "error", err)
		} else {
			return nil, fmt.Errorf("%w: %s", ErrRetrieverNotReady, err)
		}
	}
	for _, h := range lexHits {
		candidate := SearchResult{
			Chunk:         h.Chunk,
			RawScore:      h.Score,
			WeightedScore: h.Score * h.Chunk.Priority,
		}
		existing, ok := merged[h.Chunk.ID]
		// On an exact score tie the vector-sourced entry wins: it reflects
		// semantic rather than lexical match.
		if !ok || candidate.WeightedScore > existing.WeightedScore {
			merged[h.Chunk.ID] = candidate
		}
	}

	results := make([]SearchResult, 0, len(merged))
	for _, r := range merged {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].WeightedScore != results[j].WeightedScore {
			return results[i].WeightedScore > results[j].WeightedScore
		}
		if results[i].Chunk.Priority != results[j].Chunk.Priority {
			return results[i].Chunk.Priority > results[j].Chunk.Priority
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if len(results) > maxChunks {
		results = results[:maxChunks]
	}

	if len(results) == 0 {
		return &Context{
			Query:       query,
			Results:     []SearchResult{},
			Confidence:  0.0,
			ContextText: noInformationPlaceholder,
			Sources:     []string{},
			TierUsed:    TierNone,
		}, nil
	}

	contextText, included := a.format(results)
	if included == 0 {
		// Budget too small for even one chunk. Same shape as no results.
		return &Context{
			Query:       query,
			Results:     []SearchResult{},
			Confidence:  0.0,
			ContextText: noInformationPlaceholder,
			Sources:     []string{},
			TierUsed:    TierNone,
		}, nil
	}
	results = results[:included]

	var sum float64
	for _, r := range results {
		sum += r.WeightedScore
	}

	c := &Context{
		Query:       query,
		Results:     results,
		Confidence:  sum / float64(len(results)),
		ContextText: contextText,
		Sources:     sourceSet(results),
		TierUsed:    tier,
	}
	a.logger.Debug("assembled context",
		"tier", c.TierUsed,
		"results", len(c.Results),
		"confidence", c.Confidence,
		"context_chars", len(c.ContextText))
	return c, nil
}

// format renders results into the context block, stopping before the first
// result that would push the text past the budget. A result is included
// whole or not at all. Returns the text and how many results made it in.
func (a *Assembler) format(results []SearchResult) (string, int) {
	var b strings.Builder
	included := 0

	for _, r := range results {
		block := formatBlock(r.Chunk)
		add := len(block)
		if included > 0 {
			add += 2 // blank-line separator
		}
		if b.Len()+add > a.budget {
			break
		}
		if included > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block)
		included++
	}

	if included == 0 {
		return noInformationPlaceholder, 0
	}
	return b.String(), included
}

func formatBlock(c chunker.Chunk) string {
	var b strings.Builder
	switch {
	case c.Priority >= markerCritical:
		b.WriteString("[CRITICAL] ")
	case c.Priority >= markerImportant:
		b.WriteString("[IMPORTANTE] ")
	}
	b.WriteString("(")
	b.WriteString(c.Category)
	b.WriteString(") ")
	b.WriteString(c.Text)
	b.WriteString("\n(Fonte: ")
	b.WriteString(c.SourceFile)
	b.WriteString(")")
	return b.String()
}

// sourceSet returns the deduplicated source files in result order.
func sourceSet(results []SearchResult) []string {
	seen := make(map[string]bool, len(results))
	sources := make([]string, 0, len(results))
	for _, r := range results {
		if seen[r.Chunk.SourceFile] {
			continue
		}
		seen[r.Chunk.SourceFile] = true
		sources = append(sources, r.Chunk.SourceFile)
	}
	return sources
}
