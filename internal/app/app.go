// Package app assembles the application from its components.
//
// Setup wires configuration, tracing, the database pool, Genkit, the
// retrieval system, and the persona gate into an App container. Components
// receive their dependencies through constructors; nothing here reads
// globals. Call Close to release everything in reverse order.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roteiro-ai/roteiro/internal/config"
	"github.com/roteiro-ai/roteiro/internal/gate"
	"github.com/roteiro-ai/roteiro/internal/log"
	"github.com/roteiro-ai/roteiro/internal/rag"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Genkit is nil when the AI provider is "none".
	Genkit *genkit.Genkit

	// Pool is nil when PostgreSQL is not configured; retrieval then runs
	// on the lexical tier only.
	Pool *pgxpool.Pool

	Retrieval *rag.System
	Gate      *gate.Gate

	dbCleanup   func()
	otelCleanup func()
}

// Close releases all resources acquired during Setup.
func (a *App) Close() {
	a.Logger.Info("shutting down application")

	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
}
