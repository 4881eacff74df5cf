package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roteiro-ai/roteiro/internal/config"
	"github.com/roteiro-ai/roteiro/internal/log"
	"github.com/roteiro-ai/roteiro/internal/rag"
)

func templateOnlyConfig() *config.Config {
	return &config.Config{
		Provider:            "none",
		MaxChunks:           5,
		MinSimilarity:       0.1,
		ContextBudget:       3000,
		ConfidenceThreshold: 0.8,
		MaxQueryLen:         2000,
		CacheTTL:            time.Minute,
		CacheCapacity:       10,
		LLMTimeout:          time.Second,
	}
}

func TestSetup_TemplateOnly(t *testing.T) {
	a, err := Setup(context.Background(), templateOnlyConfig(), log.NewNop())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer a.Close()

	if a.Genkit != nil {
		t.Error("Genkit should be nil with provider none")
	}
	if a.Pool != nil {
		t.Error("Pool should be nil without PostgreSQL config")
	}
	if a.Retrieval == nil || a.Gate == nil {
		t.Fatal("Retrieval and Gate must be wired")
	}
}

func TestSetup_TemplateOnlyAnswers(t *testing.T) {
	ctx := context.Background()

	a, err := Setup(ctx, templateOnlyConfig(), log.NewNop())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer a.Close()

	dir := t.TempDir()
	doc := "## Rifampicina\n\nDose supervisionada mensal de 600mg para adultos no esquema PQT-U, " +
		"administrada na unidade de saúde uma vez por mês durante o tratamento completo.\n"
	if err := os.WriteFile(filepath.Join(dir, "protocolo.md"), []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	report, err := a.Retrieval.IndexAll(ctx, dir)
	if err != nil {
		t.Fatalf("IndexAll() error = %v", err)
	}
	if report.Embedded != 0 {
		t.Errorf("Embedded = %d, want 0 without an embedding provider", report.Embedded)
	}

	answer, err := a.Gate.Respond(ctx, "Qual a dose de rifampicina?", "dr_gasnelio")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if answer.UsedLLM {
		t.Error("UsedLLM = true, want template answer with no completer")
	}
	if answer.TierUsed != rag.TierLexical {
		t.Errorf("TierUsed = %q, want %q", answer.TierUsed, rag.TierLexical)
	}
}

func TestSetup_UnknownProvider(t *testing.T) {
	cfg := templateOnlyConfig()
	cfg.Provider = "oracle9000"

	_, err := Setup(context.Background(), cfg, log.NewNop())
	if err == nil {
		t.Fatal("expected error for unknown AI provider")
	}
}
