package vecindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/roteiro-ai/roteiro/internal/chunker"
)

// Memory is an in-process Index that holds chunks and vectors in a map and
// answers queries by brute-force cosine scan. It backs tests and deployments
// that run without PostgreSQL; at knowledge-base scale (hundreds of chunks)
// the linear scan is not a bottleneck.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	chunk  chunker.Chunk
	vector []float32
}

// NewMemory creates an empty in-process index.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Upsert stores chunks keyed by ID, replacing prior entries.
// A nil vector skips that chunk.
func (m *Memory) Upsert(_ context.Context, chunks []chunker.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("vecindex: %d chunks but %d vectors", len(chunks), len(vectors))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range chunks {
		if vectors[i] == nil {
			continue
		}
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		m.entries[c.ID] = memoryEntry{chunk: c, vector: vec}
	}
	return nil
}

// Search scans every stored vector and returns the topK most similar
// chunks with similarity >= minSimilarity, ordered by similarity
// descending with chunk ID as the tie-break.
func (m *Memory) Search(_ context.Context, vector []float32, topK int, minSimilarity float64) ([]Result, error) {
	if len(vector) == 0 || topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []Result
	for _, e := range m.entries {
		sim := cosineSimilarity(vector, e.vector)
		if sim < minSimilarity {
			continue
		}
		results = append(results, Result{Chunk: e.chunk, Similarity: sim})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// DeleteBySource removes every chunk stored from the given source file.
func (m *Memory) DeleteBySource(_ context.Context, sourceFile string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, e := range m.entries {
		if e.chunk.SourceFile == sourceFile {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
