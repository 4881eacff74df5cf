package testutil

import (
	"context"
	"crypto/sha256"
	"math"
	"sync/atomic"
)

// FakeEmbedderDim is the vector width produced by FakeEmbedder.
const FakeEmbedderDim = 32

// FakeEmbedder is a deterministic embed.Provider stand-in: the vector for a
// given text is derived from its SHA-256 digest and normalized to unit
// length. Identical texts always embed identically, so similarity-based
// assertions are stable across runs without any network dependency.
type FakeEmbedder struct {
	// Unavailable makes every call return nil, mimicking a degraded provider.
	Unavailable bool

	calls atomic.Int64
}

// NewFakeEmbedder creates an available deterministic embedder.
func NewFakeEmbedder() *FakeEmbedder { return &FakeEmbedder{} }

// Embed returns a unit vector derived from the text digest, or nil when the
// embedder is marked unavailable.
func (f *FakeEmbedder) Embed(_ context.Context, text string) []float32 {
	f.calls.Add(1)
	if f.Unavailable {
		return nil
	}
	return DeterministicVector(text)
}

// EmbedBatch embeds each text independently.
func (f *FakeEmbedder) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = f.Embed(ctx, text)
	}
	return vectors
}

// Available reports the inverse of Unavailable.
func (f *FakeEmbedder) Available() bool { return !f.Unavailable }

// ModelID returns a fixed test model identifier.
func (*FakeEmbedder) ModelID() string { return "fake-embedder-001" }

// Calls returns how many Embed invocations occurred.
func (f *FakeEmbedder) Calls() int { return int(f.calls.Load()) }

// DeterministicVector maps text to a unit vector of FakeEmbedderDim floats.
// Equal texts map to equal vectors; distinct texts are very unlikely to be
// close.
func DeterministicVector(text string) []float32 {
	sum := sha256.Sum256([]byte(text))

	vec := make([]float32, FakeEmbedderDim)
	var norm float64
	for i := range vec {
		// Map each digest byte to [-1, 1).
		v := float64(sum[i])/128.0 - 1.0
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
