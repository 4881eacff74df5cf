package gate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/roteiro-ai/roteiro/internal/chunker"
	"github.com/roteiro-ai/roteiro/internal/embed"
	"github.com/roteiro-ai/roteiro/internal/lexical"
	"github.com/roteiro-ai/roteiro/internal/log"
	"github.com/roteiro-ai/roteiro/internal/persona"
	"github.com/roteiro-ai/roteiro/internal/rag"
	"github.com/roteiro-ai/roteiro/internal/testutil"
)

const dosageText = "Rifampicina 600mg em dose mensal supervisionada na unidade de saúde."

func retrievalSystem(t *testing.T, chunks ...chunker.Chunk) *rag.System {
	t.Helper()
	lex := lexical.New(0.1, log.NewNop())
	if len(chunks) > 0 {
		lex.Fit(chunks)
	}
	opts := rag.Options{
		MaxChunks:     5,
		MinSimilarity: 0.1,
		ContextBudget: 3000,
		MaxQueryLen:   2000,
		CacheTTL:      time.Hour,
		CacheCapacity: 100,
	}
	return rag.NewSystem(embed.NewNull(), nil, lex, opts, log.NewNop())
}

func dosageChunk(priority float64) chunker.Chunk {
	return chunker.Chunk{
		ID:         "chunk_dose",
		Text:       dosageText,
		Category:   chunker.CategoryDosage,
		Priority:   priority,
		SourceFile: "protocol.md",
	}
}

func TestRespond_UnknownPersonaFailsFast(t *testing.T) {
	// Unfitted retrieval: if the gate touched it, the error would be
	// ErrRetrieverNotReady instead of ErrUnknownPersona.
	completer := &testutil.FakeCompleter{Reply: "resposta"}
	g := New(retrievalSystem(t), completer, Options{}, log.NewNop())

	_, err := g.Respond(context.Background(), "qual a dose", "dr_house")
	if !errors.Is(err, ErrUnknownPersona) {
		t.Fatalf("Respond = %v, want ErrUnknownPersona", err)
	}
	if completer.Calls() != 0 {
		t.Errorf("completer called %d times for invalid persona, want 0", completer.Calls())
	}
}

func TestRespond_EmptyQueryFailsFast(t *testing.T) {
	g := New(retrievalSystem(t), nil, Options{}, log.NewNop())

	_, err := g.Respond(context.Background(), "   ", persona.Ga)
	if !errors.Is(err, rag.ErrQueryEmpty) {
		t.Errorf("Respond = %v, want ErrQueryEmpty", err)
	}
}

func TestRespond_NotReadySurfaces(t *testing.T) {
	g := New(retrievalSystem(t), nil, Options{}, log.NewNop())

	_, err := g.Respond(context.Background(), "qual a dose", persona.DrGasnelio)
	if !errors.Is(err, rag.ErrRetrieverNotReady) {
		t.Errorf("Respond = %v, want ErrRetrieverNotReady", err)
	}
}

func TestRespond_HighConfidenceSkipsLLM(t *testing.T) {
	completer := &testutil.FakeCompleter{Reply: "resposta do modelo"}
	g := New(retrievalSystem(t, dosageChunk(1.0)), completer, Options{}, log.NewNop())

	// Querying with the exact chunk text yields confidence 1.0, above the
	// threshold: the context already answers, no LLM spend.
	a, err := g.Respond(context.Background(), dosageText, persona.DrGasnelio)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if a.UsedLLM {
		t.Error("UsedLLM = true for high-confidence answer")
	}
	if completer.Calls() != 0 {
		t.Errorf("completer called %d times, want 0", completer.Calls())
	}
	if !strings.Contains(a.Text, "Rifampicina 600mg") {
		t.Errorf("template answer missing chunk text: %q", a.Text)
	}
	if a.TierUsed != rag.TierLexical {
		t.Errorf("TierUsed = %q, want %q", a.TierUsed, rag.TierLexical)
	}
}

func TestRespond_LowConfidenceCallsLLM(t *testing.T) {
	completer := &testutil.FakeCompleter{Reply: "A dose mensal de rifampicina para adultos é 600mg."}
	g := New(retrievalSystem(t, dosageChunk(0.5)), completer, Options{}, log.NewNop())

	a, err := g.Respond(context.Background(), "qual a dose de rifampicina", persona.DrGasnelio)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !a.UsedLLM {
		t.Error("UsedLLM = false, want LLM answer below threshold")
	}
	if completer.Calls() != 1 {
		t.Errorf("completer called %d times, want 1", completer.Calls())
	}
	if a.Text != "A dose mensal de rifampicina para adultos é 600mg." {
		t.Errorf("Text = %q, want completer reply", a.Text)
	}
	if a.Persona != "Dr. Gasnelio" {
		t.Errorf("Persona = %q", a.Persona)
	}

	sys, usr := completer.LastPrompts()
	if sys == "" {
		t.Error("system prompt empty")
	}
	if !strings.Contains(usr, dosageText) || !strings.Contains(usr, "qual a dose de rifampicina") {
		t.Error("user prompt missing context or query")
	}
}

func TestRespond_LLMErrorFallsBack(t *testing.T) {
	completer := &testutil.FakeCompleter{Err: errors.New("503 service unavailable")}
	g := New(retrievalSystem(t, dosageChunk(0.5)), completer, Options{}, log.NewNop())

	a, err := g.Respond(context.Background(), "qual a dose de rifampicina", persona.Ga)
	if err != nil {
		t.Fatalf("LLM failure must not surface, got %v", err)
	}
	if a.UsedLLM {
		t.Error("UsedLLM = true after LLM failure")
	}
	if !strings.Contains(a.Text, "Rifampicina 600mg") {
		t.Errorf("fallback missing top chunk text: %q", a.Text)
	}
}

func TestRespond_LLMTimeoutFallsBack(t *testing.T) {
	completer := &testutil.FakeCompleter{SleepUntilCtx: true}
	g := New(retrievalSystem(t, dosageChunk(0.5)), completer,
		Options{LLMTimeout: 20 * time.Millisecond}, log.NewNop())

	start := time.Now()
	a, err := g.Respond(context.Background(), "qual a dose de rifampicina", persona.Ga)
	if err != nil {
		t.Fatalf("timeout must not surface, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Respond blocked %v, timeout not applied", elapsed)
	}
	if a.UsedLLM {
		t.Error("UsedLLM = true after timeout")
	}
}

func TestRespond_EmptyLLMReplyFallsBack(t *testing.T) {
	completer := &testutil.FakeCompleter{Reply: "   "}
	g := New(retrievalSystem(t, dosageChunk(0.5)), completer, Options{}, log.NewNop())

	a, err := g.Respond(context.Background(), "qual a dose de rifampicina", persona.DrGasnelio)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if a.UsedLLM {
		t.Error("UsedLLM = true for blank completion")
	}
	if a.Text == "" {
		t.Error("fallback answer empty")
	}
}

func TestRespond_NoCompleterConfigured(t *testing.T) {
	g := New(retrievalSystem(t, dosageChunk(0.5)), nil, Options{}, log.NewNop())

	a, err := g.Respond(context.Background(), "qual a dose de rifampicina", persona.Ga)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if a.UsedLLM {
		t.Error("UsedLLM = true without a completer")
	}
	if a.Text == "" {
		t.Error("template answer empty")
	}
}

func TestRespond_NoResultsUsesEmptyFallback(t *testing.T) {
	g := New(retrievalSystem(t, dosageChunk(0.5)), nil, Options{}, log.NewNop())

	a, err := g.Respond(context.Background(), "xyzzy frobnicate plugh", persona.DrGasnelio)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if a.TierUsed != rag.TierNone {
		t.Errorf("TierUsed = %q, want %q", a.TierUsed, rag.TierNone)
	}
	if a.Confidence != 0.0 {
		t.Errorf("Confidence = %f, want 0.0", a.Confidence)
	}
	if !strings.Contains(strings.ToLower(a.Text), "consultar") {
		t.Errorf("empty-result answer must direct to a professional: %q", a.Text)
	}
}
