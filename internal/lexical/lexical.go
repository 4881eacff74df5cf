// Package lexical implements the TF-IDF fallback retriever.
//
// It requires no embedding provider or external store, which makes it the
// retrieval tier of last resort: when embeddings or the vector index are
// unavailable, queries are still answered from the fitted term space.
//
// Fit builds an immutable model that is swapped in atomically, so in-flight
// searches against the previous model complete undisturbed while a re-fit
// replaces the vocabulary entirely.
package lexical

import (
	"container/heap"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/roteiro-ai/roteiro/internal/chunker"
)

// ErrNotFitted indicates Search was called before any Fit.
// This is the one fatal condition in the retrieval subsystem: it means no
// knowledge base has been indexed at all.
var ErrNotFitted = errors.New("lexical retriever not fitted")

const (
	// MaxVocabulary bounds the term space to the most frequent terms.
	MaxVocabulary = 1000

	// minTermRunes drops single-character tokens from the vocabulary.
	minTermRunes = 2
)

// Result is a single lexical search hit.
type Result struct {
	Chunk chunker.Chunk
	Score float64 // TF-IDF cosine similarity in [0,1]
}

// Retriever is the TF-IDF retriever. Safe for concurrent use: searches are
// lock-free reads of the current model, and Fit replaces the model with a
// single atomic pointer swap.
type Retriever struct {
	minSimilarity float64
	logger        *slog.Logger
	model         atomic.Pointer[model]
}

// model is an immutable fitted term space. Never mutated after Fit.
type model struct {
	vocab   map[string]int // term -> dimension
	idf     []float64
	chunks  []chunker.Chunk
	vectors []sparseVector // unit-normalized, parallel to chunks
}

// sparseVector maps vocabulary dimensions to normalized weights.
type sparseVector map[int]float64

// New creates a Retriever. minSimilarity filters near-zero matches from
// Search results (an empty result set is a valid outcome, not an error).
func New(minSimilarity float64, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		minSimilarity: minSimilarity,
		logger:        logger.With("component", "lexical"),
	}
}

// Fitted reports whether a model is in place.
func (r *Retriever) Fitted() bool { return r.model.Load() != nil }

// Size returns the number of chunks in the fitted model (0 when unfitted).
func (r *Retriever) Size() int {
	m := r.model.Load()
	if m == nil {
		return 0
	}
	return len(m.chunks)
}

// Fit builds the TF-IDF term space over the given chunks and swaps it in,
// entirely replacing any previously fitted vocabulary and vectors.
func (r *Retriever) Fit(chunks []chunker.Chunk) {
	df := make(map[string]int)
	tokenized := make([][]string, len(chunks))
	for i, c := range chunks {
		terms := tokenize(c.Text)
		tokenized[i] = terms

		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	vocab := selectVocabulary(df, MaxVocabulary)

	n := len(chunks)
	idf := make([]float64, len(vocab))
	for term, dim := range vocab {
		// Smoothed IDF keeps terms present in every chunk from zeroing out.
		idf[dim] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	vectors := make([]sparseVector, len(chunks))
	for i, terms := range tokenized {
		vectors[i] = vectorize(terms, vocab, idf)
	}

	fitted := &model{
		vocab:   vocab,
		idf:     idf,
		chunks:  append([]chunker.Chunk(nil), chunks...),
		vectors: vectors,
	}
	r.model.Store(fitted)

	r.logger.Debug("lexical model fitted",
		"chunks", len(chunks), "vocabulary", len(vocab))
}

// Search returns the top-k chunks by TF-IDF cosine similarity against the
// fitted term space, filtered to scores at or above the configured minimum.
// Returns ErrNotFitted if Fit has never been called.
func (r *Retriever) Search(query string, topK int) ([]Result, error) {
	m := r.model.Load()
	if m == nil {
		return nil, ErrNotFitted
	}
	if topK < 1 {
		return nil, nil
	}

	qvec := vectorize(tokenize(query), m.vocab, m.idf)
	if len(qvec) == 0 {
		return nil, nil
	}

	// Partial selection: a size-k min-heap keeps the scan O(n log k)
	// instead of sorting every chunk score.
	h := &resultHeap{}
	heap.Init(h)
	for i, vec := range m.vectors {
		score := dot(qvec, vec)
		if score > 1 {
			score = 1 // guard against rounding past the cosine bound
		}
		if score < r.minSimilarity {
			continue
		}
		if h.Len() < topK {
			heap.Push(h, Result{Chunk: m.chunks[i], Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = Result{Chunk: m.chunks[i], Score: score}
			heap.Fix(h, 0)
		}
	}

	results := make([]Result, h.Len())
	copy(results, *h)
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	return results, nil
}

// tokenize lowercases text and splits on non-alphanumeric runes, dropping
// tokens shorter than minTermRunes.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= minTermRunes {
			terms = append(terms, f)
		}
	}
	return terms
}

// selectVocabulary keeps the limit most frequent terms by document
// frequency, breaking ties alphabetically for deterministic dimensions.
func selectVocabulary(df map[string]int, limit int) map[string]int {
	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}

	vocab := make(map[string]int, len(terms))
	for dim, t := range terms {
		vocab[t] = dim
	}
	return vocab
}

// vectorize builds a unit-normalized TF-IDF vector over the vocabulary.
// Terms outside the vocabulary are ignored; an all-unknown input yields an
// empty vector.
func vectorize(terms []string, vocab map[string]int, idf []float64) sparseVector {
	tf := make(map[int]float64)
	for _, t := range terms {
		if dim, ok := vocab[t]; ok {
			tf[dim]++
		}
	}
	if len(tf) == 0 {
		return nil
	}

	var norm float64
	for dim, count := range tf {
		w := count * idf[dim]
		tf[dim] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for dim := range tf {
		tf[dim] /= norm
	}
	return tf
}

// dot computes the dot product of two normalized sparse vectors, iterating
// the smaller one.
func dot(a, b sparseVector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for dim, w := range a {
		if x, ok := b[dim]; ok {
			sum += w * x
		}
	}
	return sum
}

// resultHeap is a min-heap by score, used for partial top-k selection.
type resultHeap []Result

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)        { *h = append(*h, x.(Result)) }
func (h *resultHeap) Pop() any          { old := *h; n := len(old); x := old[n-1]; *h = old[:n-1]; return x }
