package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roteiro-ai/roteiro/db"
	"github.com/roteiro-ai/roteiro/internal/config"
	"github.com/roteiro-ai/roteiro/internal/embed"
	"github.com/roteiro-ai/roteiro/internal/gate"
	"github.com/roteiro-ai/roteiro/internal/lexical"
	"github.com/roteiro-ai/roteiro/internal/log"
	"github.com/roteiro-ai/roteiro/internal/observability"
	"github.com/roteiro-ai/roteiro/internal/rag"
	"github.com/roteiro-ai/roteiro/internal/vecindex"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup. Call Close to release.
//
// Missing infrastructure degrades instead of failing: without PostgreSQL
// the vector index is absent, without an AI provider both embeddings and
// the LLM are absent, and retrieval falls back to the lexical tier.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg, logger)

	var index vecindex.Index
	if cfg.PostgresHost != "" {
		pool, dbCleanup, err := provideDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.Pool = pool
		a.dbCleanup = dbCleanup

		pg, err := vecindex.NewPostgres(pool, embedder.ModelID(), logger)
		if err != nil {
			return nil, err
		}
		index = pg
	} else {
		logger.Info("PostgreSQL not configured, vector tier disabled")
	}

	lex := lexical.New(cfg.MinSimilarity, logger)

	a.Retrieval = rag.NewSystem(embedder, index, lex, rag.Options{
		MaxChunks:     cfg.MaxChunks,
		MinSimilarity: cfg.MinSimilarity,
		ContextBudget: cfg.ContextBudget,
		MaxQueryLen:   cfg.MaxQueryLen,
		CacheTTL:      cfg.CacheTTL,
		CacheCapacity: cfg.CacheCapacity,
	}, logger)

	var completer gate.Completer
	if g != nil {
		completer = gate.NewGenkitCompleter(g, cfg.FullModelName(), float64(cfg.Temperature), cfg.MaxTokens)
	}

	a.Gate = gate.New(a.Retrieval, completer, gate.Options{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		LLMTimeout:          cfg.LLMTimeout,
	}, logger)

	return a, nil
}

// provideOtelShutdown sets up OTLP tracing before Genkit initialization so
// the TracerProvider is ready when genkit.Init runs.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	shutdown := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Environment: cfg.Environment,
	})

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured AI provider.
// Provider "none" disables the LLM and embeddings entirely; the service
// then answers from persona templates over lexical retrieval.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "googleai"
	}

	switch provider {
	case "none":
		logger.Info("AI provider disabled, running template-only")
		return nil, nil
	case "googleai", "gemini":
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		logger.Info("initialized Genkit with googleai provider", "model", cfg.ModelName)
		return g, nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", provider)
	}
}

// provideEmbedder builds the embedding provider for the configured AI
// provider. Without Genkit the null provider keeps the pipeline total.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config, logger log.Logger) embed.Provider {
	if g == nil {
		return embed.NewNull()
	}
	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		logger.Warn("embedder not found, vector tier disabled", "model", cfg.EmbedderModel)
		return embed.NewNull()
	}

	return embed.NewGenkit(embedder, cfg.EmbedderModel, cfg.EmbedTimeout, logger)
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.ConnURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnURL())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}
