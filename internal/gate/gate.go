// Package gate decides how a query gets answered: by the external language
// model or by a persona template built from retrieved context.
//
// The gate is the outermost stage of the pipeline. It validates the persona
// before spending any retrieval work, pulls context through the retrieval
// system, and only calls the LLM when one is configured and the retrieval
// confidence is below the high-confidence threshold. LLM transport failures
// never reach the caller; they degrade to the persona's template answer.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roteiro-ai/roteiro/internal/log"
	"github.com/roteiro-ai/roteiro/internal/persona"
	"github.com/roteiro-ai/roteiro/internal/rag"
)

// ErrUnknownPersona reports a persona id outside the closed set. It is a
// caller error, raised before any retrieval work.
var ErrUnknownPersona = errors.New("gate: unknown persona")

// Completer is the opaque text-in/text-out seam in front of the language
// model. Implementations must honor context cancellation.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Answer is the final response shape handed to the HTTP layer.
type Answer struct {
	Text       string   `json:"answer"`
	Persona    string   `json:"persona"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
	TierUsed   string   `json:"tier_used"`
	UsedLLM    bool     `json:"used_llm"`
}

// Options carries the gate's decision knobs.
type Options struct {
	// ConfidenceThreshold is the retrieval confidence at or above which the
	// context itself answers and the LLM call is skipped.
	ConfidenceThreshold float64
	// LLMTimeout bounds a single completion call.
	LLMTimeout time.Duration
}

// Gate routes queries to the LLM or to persona templates.
//
// Gate is safe for concurrent use.
type Gate struct {
	retrieval *rag.System
	completer Completer
	opts      Options
	logger    log.Logger
}

// New creates a Gate. completer may be nil when no LLM is configured; every
// answer then comes from persona templates.
func New(retrieval *rag.System, completer Completer, opts Options, logger log.Logger) *Gate {
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = 0.8
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Gate{
		retrieval: retrieval,
		completer: completer,
		opts:      opts,
		logger:    logger,
	}
}

// Respond answers query in the voice of the given persona.
//
// An unknown persona or blank query fails fast without touching retrieval.
// The only other error is rag.ErrRetrieverNotReady; everything else
// degrades inside the pipeline.
func (g *Gate) Respond(ctx context.Context, query, personaID string) (*Answer, error) {
	p, ok := persona.Lookup(personaID)
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)",
			ErrUnknownPersona, personaID, strings.Join(persona.IDs(), ", "))
	}
	if strings.TrimSpace(query) == "" {
		return nil, rag.ErrQueryEmpty
	}

	c, err := g.retrieval.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		Persona:    p.Name,
		Confidence: c.Confidence,
		Sources:    c.Sources,
		TierUsed:   c.TierUsed,
	}

	if g.completer != nil && c.Confidence < g.opts.ConfidenceThreshold {
		if text, ok := g.complete(ctx, p, c); ok {
			answer.Text = text
			answer.UsedLLM = true
			return answer, nil
		}
	}

	answer.Text = p.FallbackAnswer(topChunkText(c))
	return answer, nil
}

// complete runs one bounded LLM call. A failure, timeout, or blank reply
// reports ok=false and the caller falls back to the template.
func (g *Gate) complete(ctx context.Context, p persona.Persona, c *rag.Context) (string, bool) {
	llmCtx, cancel := context.WithTimeout(ctx, g.opts.LLMTimeout)
	defer cancel()

	text, err := g.completer.Complete(llmCtx, p.SystemPrompt, buildUserPrompt(c))
	if err != nil {
		g.logger.Warn("completion failed, falling back to template",
			"persona", p.ID, "error", err)
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		g.logger.Warn("completion returned empty text, falling back to template",
			"persona", p.ID)
		return "", false
	}
	return text, true
}

func buildUserPrompt(c *rag.Context) string {
	var b strings.Builder
	b.WriteString("Contexto:\n")
	b.WriteString(c.ContextText)
	b.WriteString("\n\nPergunta: ")
	b.WriteString(c.Query)
	return b.String()
}

func topChunkText(c *rag.Context) string {
	if len(c.Results) == 0 {
		return ""
	}
	return c.Results[0].Chunk.Text
}
