package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roteiro-ai/roteiro/internal/chunker"
	"github.com/roteiro-ai/roteiro/internal/embed"
	"github.com/roteiro-ai/roteiro/internal/lexical"
	"github.com/roteiro-ai/roteiro/internal/log"
	"github.com/roteiro-ai/roteiro/internal/vecindex"
)

// Options carries the retrieval knobs the system reads at startup.
type Options struct {
	MaxChunks     int
	MinSimilarity float64
	ContextBudget int
	MaxQueryLen   int
	CacheTTL      time.Duration
	CacheCapacity int
}

// System is the retrieval façade: indexing the knowledge base, serving
// cached assembled contexts, and reporting pipeline health.
//
// System is safe for concurrent use.
type System struct {
	embedder  embed.Provider
	index     vecindex.Index
	lexical   *lexical.Retriever
	assembler *Assembler
	cache     *Cache
	opts      Options
	logger    log.Logger
}

// Status reports the health of each retrieval tier.
type Status struct {
	LexicalFitted   bool   `json:"lexical_fitted"`
	LexicalChunks   int    `json:"lexical_chunks"`
	VectorAvailable bool   `json:"vector_available"`
	VectorChunks    int    `json:"vector_chunks"`
	EmbeddingModel  string `json:"embedding_model"`
	ExpectedTier    string `json:"expected_tier"`
	CacheEntries    int    `json:"cache_entries"`
	CacheHits       int64  `json:"cache_hits"`
	CacheMisses     int64  `json:"cache_misses"`
}

// IndexReport summarizes one indexing run.
type IndexReport struct {
	Chunks   int `json:"chunks"`
	Embedded int `json:"embedded"`
	Skipped  int `json:"skipped"`
}

// ErrQueryEmpty reports a blank query, rejected before any retrieval work.
var ErrQueryEmpty = errors.New("rag: query must not be empty")

// NewSystem wires the retrieval façade. index may be nil (lexical-only
// deployment); embedder may be the null provider.
func NewSystem(embedder embed.Provider, index vecindex.Index, lex *lexical.Retriever, opts Options, logger log.Logger) *System {
	if embedder == nil {
		embedder = embed.NewNull()
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &System{
		embedder:  embedder,
		index:     index,
		lexical:   lex,
		assembler: NewAssembler(embedder, index, lex, opts.ContextBudget, logger),
		cache:     NewCache(opts.CacheCapacity, opts.CacheTTL),
		opts:      opts,
		logger:    logger,
	}
}

// IndexAll chunks the knowledge directory, fits the lexical retriever, and
// upserts embeddings into the vector index when one is configured. Chunks
// whose embedding comes back nil are counted as skipped, not failed: they
// remain reachable through the lexical tier.
func (s *System) IndexAll(ctx context.Context, knowledgeDir string) (*IndexReport, error) {
	chunks, err := LoadKnowledgeDir(knowledgeDir)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("rag: no knowledge files found in %q", knowledgeDir)
	}

	s.lexical.Fit(chunks)
	report := &IndexReport{Chunks: len(chunks)}

	if s.index != nil && s.embedder.Available() {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors := s.embedder.EmbedBatch(ctx, texts)
		for _, v := range vectors {
			if v != nil {
				report.Embedded++
			}
		}
		report.Skipped = len(chunks) - report.Embedded

		if report.Embedded > 0 {
			if err := s.index.Upsert(ctx, chunks, vectors); err != nil {
				// Vector indexing is best-effort; lexical already serves.
				s.logger.Warn("vector upsert failed, lexical tier still serves", "error", err)
				report.Embedded = 0
				report.Skipped = len(chunks)
			}
		}
	} else {
		report.Skipped = len(chunks)
	}

	s.logger.Info("knowledge base indexed",
		"chunks", report.Chunks,
		"embedded", report.Embedded,
		"skipped", report.Skipped)
	return report, nil
}

// Retrieve returns the assembled context for query, serving from cache when
// a fresh entry exists. Queries longer than MaxQueryLen are clipped.
func (s *System) Retrieve(ctx context.Context, query string) (*Context, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrQueryEmpty
	}
	if s.opts.MaxQueryLen > 0 && len(query) > s.opts.MaxQueryLen {
		// Clip at a rune boundary so accented text never ends mid-sequence.
		cut := s.opts.MaxQueryLen
		for cut > 0 && !utf8.RuneStart(query[cut]) {
			cut--
		}
		query = strings.TrimSpace(query[:cut])
	}

	key := CacheKey(query, s.opts.MaxChunks, s.opts.MinSimilarity)
	if cached := s.cache.Get(key); cached != nil {
		s.logger.Debug("context cache hit", "key", key)
		return cached, nil
	}

	c, err := s.assembler.Assemble(ctx, query, s.opts.MaxChunks, s.opts.MinSimilarity)
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, c)
	return c, nil
}

// Status reports tier health. Vector chunk counts come from the index; a
// count failure reads as zero with the vector tier marked unavailable.
func (s *System) Status(ctx context.Context) Status {
	st := Status{
		LexicalFitted:  s.lexical.Fitted(),
		LexicalChunks:  s.lexical.Size(),
		EmbeddingModel: s.embedder.ModelID(),
	}
	st.CacheEntries = s.cache.Len()
	st.CacheHits, st.CacheMisses = s.cache.Stats()

	if s.index != nil && s.embedder.Available() {
		count, err := s.index.Count(ctx)
		if err != nil {
			s.logger.Warn("vector index count failed", "error", err)
		} else {
			st.VectorAvailable = true
			st.VectorChunks = count
		}
	}

	switch {
	case st.VectorAvailable && st.VectorChunks > 0:
		st.ExpectedTier = TierVector
	case st.LexicalFitted:
		st.ExpectedTier = TierLexical
	default:
		st.ExpectedTier = TierNone
	}
	return st
}

// Chunks re-chunks the knowledge directory without touching any retriever.
// Used by tooling that wants to inspect chunking output.
func Chunks(knowledgeDir string) ([]chunker.Chunk, error) {
	return LoadKnowledgeDir(knowledgeDir)
}
