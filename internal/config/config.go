// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.roteiro/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: LLM provider/model, embedder model and dimension
//   - Storage: PostgreSQL + pgvector connection
//   - Retrieval: chunk budgets, similarity thresholds, context budget
//   - Cache: assembled-context cache TTL and capacity
//   - Serve: HTTP address, CORS, rate limiting
//
// Security: sensitive values (passwords) are masked in MarshalJSON/String.
// Validation: range checks in validation.go, fail-fast in Load().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates the LLM model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates the embedder produces incompatible vector dimensions.
	ErrInvalidEmbedderDimension = errors.New("incompatible embedder dimension")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidRetrieval indicates a retrieval budget is out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval setting")

	// ErrInvalidCache indicates a cache setting is out of range.
	ErrInvalidCache = errors.New("invalid cache setting")

	// ErrInvalidTimeout indicates a timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the pgvector schema uses 768 (db/migrations).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimension matches the vector column in db/migrations.
	DefaultEmbedderDimension = 768

	// DefaultContextBudget is the assembled-context character limit.
	DefaultContextBudget = 3000

	// DefaultMaxChunks is the number of chunks included in a context.
	DefaultMaxChunks = 5

	// DefaultMinSimilarity filters near-zero retrieval matches.
	DefaultMinSimilarity = 0.1

	// DefaultConfidenceThreshold is the weighted-score mean above which the
	// LLM call is skipped and the context is served directly.
	DefaultConfidenceThreshold = 0.8

	// DefaultMaxQueryLen bounds inbound query length at the HTTP edge.
	DefaultMaxQueryLen = 2000
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"`
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Embedder configuration
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int    `mapstructure:"embedder_dimension" json:"embedder_dimension"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Retrieval budgets
	MaxChunks           int     `mapstructure:"max_chunks" json:"max_chunks"`
	MinSimilarity       float64 `mapstructure:"min_similarity" json:"min_similarity"`
	ContextBudget       int     `mapstructure:"context_budget" json:"context_budget"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" json:"confidence_threshold"`
	MaxQueryLen         int     `mapstructure:"max_query_len" json:"max_query_len"`

	// Context cache
	CacheTTL      time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`
	CacheCapacity int           `mapstructure:"cache_capacity" json:"cache_capacity"`

	// Operation timeouts
	EmbedTimeout  time.Duration `mapstructure:"embed_timeout" json:"embed_timeout"`
	SearchTimeout time.Duration `mapstructure:"search_timeout" json:"search_timeout"`
	LLMTimeout    time.Duration `mapstructure:"llm_timeout" json:"llm_timeout"`

	// Knowledge base location (used by the index command and admin reindex)
	KnowledgeDir string `mapstructure:"knowledge_dir" json:"knowledge_dir"`

	// Serve mode
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Observability (empty endpoint disables tracing)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// IsDev reports whether the service runs in a development environment.
// Production hardening (HSTS) is skipped in dev.
func (c *Config) IsDev() bool {
	return c.Environment != "prod"
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".roteiro")
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
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", "googleai")
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 2048)

	// Embedder defaults
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedder_dimension", DefaultEmbedderDimension)

	// PostgreSQL defaults (local development instance)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "roteiro")
	viper.SetDefault("postgres_password", "roteiro_dev_password")
	viper.SetDefault("postgres_db_name", "roteiro")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Retrieval defaults
	viper.SetDefault("max_chunks", DefaultMaxChunks)
	viper.SetDefault("min_similarity", DefaultMinSimilarity)
	viper.SetDefault("context_budget", DefaultContextBudget)
	viper.SetDefault("confidence_threshold", DefaultConfidenceThreshold)
	viper.SetDefault("max_query_len", DefaultMaxQueryLen)

	// Cache defaults
	viper.SetDefault("cache_ttl", time.Hour)
	viper.SetDefault("cache_capacity", 1000)

	// Timeout defaults
	viper.SetDefault("embed_timeout", 10*time.Second)
	viper.SetDefault("search_timeout", 10*time.Second)
	viper.SetDefault("llm_timeout", 30*time.Second)

	// Knowledge base
	viper.SetDefault("knowledge_dir", "data/knowledge")

	// Serve defaults
	viper.SetDefault("listen_addr", "127.0.0.1:8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:4200"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 60)

	// Observability defaults
	viper.SetDefault("environment", "dev")
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper.
func bindEnvVariables() {
	// Hardcoded keys can't fail to bind; a panic here is a bug, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "ROTEIRO_PROVIDER")
	mustBind("model_name", "ROTEIRO_MODEL_NAME")
	mustBind("embedder_model", "ROTEIRO_EMBEDDER_MODEL")
	mustBind("postgres_host", "ROTEIRO_POSTGRES_HOST")
	mustBind("postgres_port", "ROTEIRO_POSTGRES_PORT")
	mustBind("postgres_user", "ROTEIRO_POSTGRES_USER")
	mustBind("postgres_password", "ROTEIRO_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "ROTEIRO_POSTGRES_DB")
	mustBind("knowledge_dir", "ROTEIRO_KNOWLEDGE_DIR")
	mustBind("listen_addr", "ROTEIRO_LISTEN_ADDR")
	mustBind("cors_origins", "ROTEIRO_CORS_ORIGINS")
	mustBind("trust_proxy", "ROTEIRO_TRUST_PROXY")
	mustBind("rate_burst", "ROTEIRO_RATE_BURST")
	mustBind("otlp_endpoint", "ROTEIRO_OTLP_ENDPOINT")
	mustBind("environment", "ROTEIRO_ENV")
}

// FullModelName returns the provider-qualified model name for Genkit,
// e.g. "googleai/gemini-2.5-flash". If ModelName already contains a "/",
// it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return "googleai/" + c.ModelName
}

// ConnURL returns the PostgreSQL connection URL.
func (c *Config) ConnURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   c.PostgresDBName,
	}
	q := u.Query()
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked; longer secrets keep the first
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

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// When adding new sensitive fields, update this method.
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

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
