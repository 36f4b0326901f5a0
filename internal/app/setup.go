package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	coreapi "github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/voyago/voyago/db"
	"github.com/voyago/voyago/internal/chat"
	"github.com/voyago/voyago/internal/config"
	"github.com/voyago/voyago/internal/knowledge"
	"github.com/voyago/voyago/internal/llm"
	"github.com/voyago/voyago/internal/memory"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	a := &App{Config: cfg}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				slog.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Knowledge = knowledge.New(knowledge.NewQueries(pool), embedder, slog.Default())

	a.LLM, err = llm.New(llm.Config{
		Genkit:    g,
		ModelName: qualifiedModelName(cfg),
		Logger:    slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}

	a.Memory, err = memory.New(memory.NewQueries(pool), pool, a.LLM, memory.Config{
		MaxTurns:        cfg.MaxTurns,
		MergePrevious:   cfg.SummaryMerge == config.SummaryMergeMerge,
		MaxSummaryChars: cfg.SummaryMaxChars,
	}, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("creating memory store: %w", err)
	}

	a.Chat, err = chat.New(chat.Config{
		Retriever: a.Knowledge,
		Memory:    a.Memory,
		Completer: a.LLM,
		Logger:    slog.Default(),
		TopK:      cfg.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat orchestrator: %w", err)
	}

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit
// initialization so the TracerProvider is ready. Traces go to a local
// collector over OTLP HTTP; the collector handles authentication and
// forwarding. Returns a shutdown func; no-op when disabled.
func provideOtelShutdown(ctx context.Context, cfg *config.Config) func() {
	if !cfg.Otel.Enabled {
		return func() {}
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Otel.Endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		slog.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("OTLP tracing enabled",
		"endpoint", cfg.Otel.Endpoint,
		"service", cfg.Otel.ServiceName,
		"environment", cfg.Otel.Environment)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
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

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		slog.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		slog.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // gemini
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		slog.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		// Ollama embedders are keyed by server address (registered in provideGenkit).
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, coreapi.NewName("openai", cfg.EmbedderModel))
	default: // gemini
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// qualifiedModelName returns the provider-prefixed model name Genkit
// resolves at generate time.
func qualifiedModelName(cfg *config.Config) string {
	switch cfg.Provider {
	case config.ProviderOllama:
		return "ollama/" + cfg.ModelName
	case config.ProviderOpenAI:
		return "openai/" + cfg.ModelName
	default: // gemini
		return "googleai/" + cfg.ModelName
	}
}
