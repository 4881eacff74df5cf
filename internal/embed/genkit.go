package embed

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
)

// Provider availability states. Unavailable is sticky: once the backend
// proves unreachable during the probe, the process never retries it.
type providerState int

const (
	stateUninitialized providerState = iota
	stateProbing
	stateAvailable
	stateUnavailable
)

const defaultCacheCapacity = 1000

// Genkit is the network-backed Provider built on a Genkit ai.Embedder.
//
// The backing model is probed lazily on first use. Per-call failures after a
// successful probe (rate limits, transient network errors) return nil for
// that call without demoting the provider.
//
// Safe for concurrent use.
type Genkit struct {
	embedder ai.Embedder
	modelID  string
	timeout  time.Duration
	cache    *vectorCache
	logger   *slog.Logger

	mu    sync.Mutex
	state providerState
}

// NewGenkit creates a Genkit-backed provider.
// A nil embedder yields a provider that is permanently unavailable, which is
// the same degradation seam as the Null provider.
func NewGenkit(embedder ai.Embedder, modelID string, timeout time.Duration, logger *slog.Logger) *Genkit {
	if logger == nil {
		logger = slog.Default()
	}

	state := stateUninitialized
	if embedder == nil {
		state = stateUnavailable
	}

	return &Genkit{
		embedder: embedder,
		modelID:  modelID,
		timeout:  timeout,
		cache:    newVectorCache(defaultCacheCapacity),
		logger:   logger.With("component", "embed"),
		state:    state,
	}
}

// ModelID returns the configured embedding model identifier.
func (g *Genkit) ModelID() string { return g.modelID }

// Available reports the current availability verdict.
// Uninitialized counts as available: the provider has not been disproven yet.
func (g *Genkit) Available() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state != stateUnavailable
}

// Embed returns the unit-normalized embedding for text, or nil when the
// provider is (or becomes) unavailable. Input beyond MaxEmbedChars is clipped
// silently.
func (g *Genkit) Embed(ctx context.Context, text string) []float32 {
	if !g.Available() {
		return nil
	}

	if len(text) > MaxEmbedChars {
		// Clip at a rune boundary so accented text never ends mid-sequence.
		cut := MaxEmbedChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	key := cacheKey(g.modelID, text)
	if vec, ok := g.cache.get(key); ok {
		return vec
	}

	vec := g.callEmbedder(ctx, text)
	if vec == nil {
		return nil
	}

	normalize(vec)
	g.cache.put(key, vec)
	return vec
}

// EmbedBatch embeds each text independently. Entries are nil on failure.
func (g *Genkit) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = g.Embed(ctx, text)
	}
	return vectors
}

// callEmbedder performs the network call, advancing the probe state machine.
// A failure during the first probe marks the provider unavailable for the
// process lifetime; later failures only fail the individual call.
func (g *Genkit) callEmbedder(ctx context.Context, text string) []float32 {
	g.mu.Lock()
	probing := g.state == stateUninitialized
	if probing {
		g.state = stateProbing
	}
	g.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.embedder.Embed(callCtx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		g.mu.Lock()
		if probing {
			g.state = stateUnavailable
			g.logger.Warn("embedding provider unavailable, falling back to lexical retrieval",
				"model", g.modelID, "error", err)
		} else {
			g.state = stateAvailable
			g.logger.Debug("embedding call failed", "model", g.modelID, "error", err)
		}
		g.mu.Unlock()
		return nil
	}

	g.mu.Lock()
	g.state = stateAvailable
	g.mu.Unlock()

	// Copy so cache entries never alias response buffers.
	vec := make([]float32, len(resp.Embeddings[0].Embedding))
	copy(vec, resp.Embeddings[0].Embedding)
	return vec
}

// normalize scales v to unit length in place. Zero vectors are left as-is.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
