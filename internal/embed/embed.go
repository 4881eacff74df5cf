// Package embed provides the embedding capability seam for the retrieval
// pipeline.
//
// Provider is the primary degradation point in the whole system: a nil
// vector from Embed means "embeddings unavailable for this call", and every
// call site falls back to the lexical retriever. Failures are logged where
// they occur but never surface as errors.
//
// Two implementations exist: Genkit (network-backed, see genkit.go) and Null
// (always unavailable). The context assembler depends only on the interface.
package embed

import "context"

// MaxEmbedChars caps the text length sent to the embedding model.
// Longer input is clipped silently; clipping is not an error.
const MaxEmbedChars = 8000

// Provider converts text into fixed-length unit vectors.
//
// Embed returns nil, never an error, when no provider is configured, the
// provider is unreachable, or the call is rate-limited. Returned vectors are
// normalized to unit length, so cosine similarity reduces to a dot product.
type Provider interface {
	// Embed returns the embedding for text, or nil if unavailable.
	Embed(ctx context.Context, text string) []float32

	// EmbedBatch embeds each text independently; individual entries may be
	// nil while others succeed.
	EmbedBatch(ctx context.Context, texts []string) [][]float32

	// Available reports whether the provider is believed usable. An
	// unavailable verdict is sticky for the process lifetime.
	Available() bool

	// ModelID identifies the embedding model. Vectors from different models
	// must never share an index.
	ModelID() string
}

// Null is the no-op Provider wired in when no embedding backend is
// configured. It is always unavailable and embeds nothing.
type Null struct{}

// NewNull creates a Null provider.
func NewNull() *Null { return &Null{} }

// Embed always returns nil.
func (*Null) Embed(context.Context, string) []float32 { return nil }

// EmbedBatch returns a nil vector per input.
func (*Null) EmbedBatch(_ context.Context, texts []string) [][]float32 {
	return make([][]float32, len(texts))
}

// Available always reports false.
func (*Null) Available() bool { return false }

// ModelID returns the sentinel model id for the null provider.
func (*Null) ModelID() string { return "none" }
