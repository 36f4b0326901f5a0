package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validBaseConfig returns a Config with all required fields set for the
// given provider.
func validBaseConfig(provider string) *Config {
	cfg := &Config{
		Provider:         provider,
		ModelName:        "gemini-2.5-flash",
		EmbedderModel:    "gemini-embedding-001",
		MaxTurns:         6,
		SummaryMerge:     SummaryMergeMerge,
		SummaryMaxChars:  DefaultSummaryMaxChars,
		TopK:             3,
		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "voyago",
		PostgresPassword: "test_password",
		PostgresDBName:   "voyago",
		PostgresSSLMode:  "disable",
	}
	switch provider {
	case ProviderOllama:
		cfg.ModelName = "llama3.1:8b"
		cfg.EmbedderModel = "nomic-embed-text"
		cfg.OllamaHost = "http://localhost:11434"
	case ProviderOpenAI:
		cfg.ModelName = "gpt-4o-mini"
		cfg.EmbedderModel = "text-embedding-3-small"
	}
	return cfg
}

// setEnvForProvider sets the required API key for the given provider
// using t.Setenv, so it is restored automatically.
func setEnvForProvider(t *testing.T, provider string) {
	t.Helper()
	switch provider {
	case ProviderGemini:
		t.Setenv("GEMINI_API_KEY", "test-api-key")
	case ProviderOpenAI:
		t.Setenv("OPENAI_API_KEY", "test-openai-key")
	}
}

func TestValidate_Success(t *testing.T) {
	for _, provider := range []string{ProviderGemini, ProviderOllama, ProviderOpenAI} {
		t.Run(provider, func(t *testing.T) {
			setEnvForProvider(t, provider)
			cfg := validBaseConfig(provider)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	t.Parallel()

	var cfg *Config
	assert.ErrorIs(t, cfg.Validate(), ErrConfigNil)
}

func TestValidate_Provider(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		cfg := validBaseConfig("anthropic")
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidProvider)
	})

	t.Run("gemini without key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		cfg := validBaseConfig(ProviderGemini)
		assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
	})

	t.Run("openai without key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		cfg := validBaseConfig(ProviderOpenAI)
		assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
	})

	t.Run("ollama needs no key", func(t *testing.T) {
		cfg := validBaseConfig(ProviderOllama)
		assert.NoError(t, cfg.Validate())
	})
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty model name", func(c *Config) { c.ModelName = "" }, ErrInvalidModelName},
		{"empty embedder model", func(c *Config) { c.EmbedderModel = "" }, ErrInvalidEmbedderModel},
		{"zero max turns", func(c *Config) { c.MaxTurns = 0 }, ErrInvalidMaxTurns},
		{"excessive max turns", func(c *Config) { c.MaxTurns = 101 }, ErrInvalidMaxTurns},
		{"unknown summary policy", func(c *Config) { c.SummaryMerge = "append" }, ErrInvalidSummaryPolicy},
		{"zero top_k", func(c *Config) { c.TopK = 0 }, ErrInvalidTopK},
		{"excessive top_k", func(c *Config) { c.TopK = 11 }, ErrInvalidTopK},
		{"empty postgres host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"invalid postgres port", func(c *Config) { c.PostgresPort = 0 }, ErrInvalidPostgresPort},
		{"port above range", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty db name", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"empty password", func(c *Config) { c.PostgresPassword = "" }, ErrInvalidPostgresPassword},
		{"bad ssl mode", func(c *Config) { c.PostgresSSLMode = "maybe" }, ErrInvalidPostgresSSLMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Ollama avoids API key environment coupling.
			cfg := validBaseConfig(ProviderOllama)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
