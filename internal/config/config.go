// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.voyago/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, model, embedder model
//   - Chat: retained turns, summary policy, retrieval depth
//   - Storage: PostgreSQL connection (see storage.go)
//   - Server: listen address, rate limiting
//   - Otel: OTLP trace export
//
// Sensitive values (passwords) are masked in MarshalJSON and never
// logged. Validation lives in validation.go and uses sentinel errors
// checkable with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidMaxTurns indicates the retained turn count is out of range.
	ErrInvalidMaxTurns = errors.New("invalid max turns")

	// ErrInvalidSummaryPolicy indicates the summary merge policy is unknown.
	ErrInvalidSummaryPolicy = errors.New("invalid summary policy")

	// ErrInvalidTopK indicates the retrieval depth is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Summary merge policies used in Config.SummaryMerge.
//
// SummaryMergeReplace keeps only the summary of the most recent
// overflow batch; older summarized content is discarded when batches
// do not overlap. SummaryMergeMerge feeds the previous summary back
// into the summarization prompt so retention compounds.
const (
	SummaryMergeReplace = "replace"
	SummaryMergeMerge   = "merge"
)

// DefaultSummaryMaxChars bounds the stored rolling summary.
const DefaultSummaryMaxChars = 1500

// OtelConfig configures OTLP trace export. Traces are sent to a local
// collector over OTLP HTTP; the collector handles authentication and
// forwarding.
type OtelConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"`           // "gemini" (default), "ollama", "openai"
	ModelName     string `mapstructure:"model_name" json:"model_name"`       // e.g. "gemini-2.5-flash", "llama3.1:8b", "gpt-4o-mini"
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"` // only used when provider is "ollama"

	// Conversation memory configuration
	MaxTurns        int    `mapstructure:"max_turns" json:"max_turns"`                 // retained turns; history window is 2*MaxTurns messages
	SummaryMerge    string `mapstructure:"summary_merge" json:"summary_merge"`         // "merge" (default) or "replace"
	SummaryMaxChars int    `mapstructure:"summary_max_chars" json:"summary_max_chars"` // stored summary bound

	// Retrieval configuration
	TopK int `mapstructure:"top_k" json:"top_k"` // default documents per question

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Server configuration (serve mode only)
	Addr       string  `mapstructure:"addr" json:"addr"`
	TrustProxy bool    `mapstructure:"trust_proxy" json:"trust_proxy"` // trust X-Real-IP/X-Forwarded-For behind a reverse proxy
	RateRPS    float64 `mapstructure:"rate_rps" json:"rate_rps"`       // per-IP sustained requests per second
	RateBurst  int     `mapstructure:"rate_burst" json:"rate_burst"`   // per-IP burst allowance

	// Observability configuration
	Otel OtelConfig `mapstructure:"otel" json:"otel"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".voyago")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides the individual postgres_* values.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", "gemini-embedding-001")
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Memory defaults
	viper.SetDefault("max_turns", 6)
	viper.SetDefault("summary_merge", SummaryMergeMerge)
	viper.SetDefault("summary_max_chars", DefaultSummaryMaxChars)

	// Retrieval defaults
	viper.SetDefault("top_k", 3)

	// PostgreSQL defaults (local development instance)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "voyago")
	viper.SetDefault("postgres_password", "voyago_dev_password")
	viper.SetDefault("postgres_db_name", "voyago")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults
	viper.SetDefault("addr", "127.0.0.1:8080")
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_rps", 10.0)
	viper.SetDefault("rate_burst", 30)

	// Otel defaults
	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.endpoint", "localhost:4318")
	viper.SetDefault("otel.service_name", "voyago")
	viper.SetDefault("otel.environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly.
//
// NOTE: GEMINI_API_KEY and OPENAI_API_KEY are read directly by the
// Genkit provider plugins, not via Viper. Validation checks their
// presence based on the selected provider.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "VOYAGO_PROVIDER")
	mustBind("model_name", "VOYAGO_MODEL_NAME")
	mustBind("embedder_model", "VOYAGO_EMBEDDER_MODEL")
	mustBind("ollama_host", "VOYAGO_OLLAMA_HOST")
	mustBind("addr", "VOYAGO_ADDR")
	mustBind("trust_proxy", "VOYAGO_TRUST_PROXY")
	mustBind("max_turns", "VOYAGO_MAX_TURNS")
	mustBind("summary_merge", "VOYAGO_SUMMARY_MERGE")
	mustBind("otel.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real
// secret characters.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of eight
// characters or fewer are fully masked; longer secrets keep the first
// and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking. When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
