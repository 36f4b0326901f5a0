package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider and API key validation
	switch c.Provider {
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required for provider %q",
				ErrMissingAPIKey, c.Provider)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required for provider %q",
				ErrMissingAPIKey, c.Provider)
		}
	case ProviderOllama:
		// Local provider, no key required.
	default:
		return fmt.Errorf("%w: %q (expected gemini, ollama, or openai)", ErrInvalidProvider, c.Provider)
	}

	// 2. Model configuration
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// 3. Memory configuration
	if c.MaxTurns < 1 || c.MaxTurns > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d", ErrInvalidMaxTurns, c.MaxTurns)
	}
	if c.SummaryMerge != SummaryMergeMerge && c.SummaryMerge != SummaryMergeReplace {
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidSummaryPolicy, c.SummaryMerge, SummaryMergeMerge, SummaryMergeReplace)
	}

	// 4. Retrieval configuration
	if c.TopK < 1 || c.TopK > 10 {
		return fmt.Errorf("%w: must be between 1 and 10, got %d", ErrInvalidTopK, c.TopK)
	}

	// 5. PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "voyago_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"hint", "change postgres_password for production deployments")
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q (expected one of %v)",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
