// Package app wires the application together: configuration,
// database, Genkit provider plugins, stores, and the chat
// orchestrator. Setup builds everything in dependency order and
// Close releases it in reverse.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyago/voyago/internal/chat"
	"github.com/voyago/voyago/internal/config"
	"github.com/voyago/voyago/internal/knowledge"
	"github.com/voyago/voyago/internal/llm"
	"github.com/voyago/voyago/internal/memory"
)

// App holds the application's wired components.
type App struct {
	Config *config.Config

	DBPool   *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	Knowledge *knowledge.Store
	Memory    *memory.Store
	LLM       *llm.Client
	Chat      *chat.Chat

	otelCleanup func()
	dbCleanup   func()
}

// Close releases resources in reverse initialization order.
// Safe to call on a partially initialized App.
func (a *App) Close() error {
	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
