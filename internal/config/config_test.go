package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// validConfig returns a Config that passes Validate.
func validConfig() *Config {
	return &Config{
		Provider:            "googleai",
		ModelName:           "gemini-2.5-flash",
		Temperature:         0.7,
		MaxTokens:           2048,
		EmbedderModel:       DefaultEmbedderModel,
		EmbedderDimension:   DefaultEmbedderDimension,
		PostgresHost:        "localhost",
		PostgresPort:        5432,
		PostgresUser:        "roteiro",
		PostgresPassword:    "roteiro_dev_password",
		PostgresDBName:      "roteiro",
		PostgresSSLMode:     "disable",
		MaxChunks:           DefaultMaxChunks,
		MinSimilarity:       DefaultMinSimilarity,
		ContextBudget:       DefaultContextBudget,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		MaxQueryLen:         DefaultMaxQueryLen,
		CacheTTL:            time.Hour,
		CacheCapacity:       1000,
		EmbedTimeout:        10 * time.Second,
		SearchTimeout:       10 * time.Second,
		LLMTimeout:          30 * time.Second,
		ListenAddr:          "127.0.0.1:8080",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: nil,
		},
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty embedder model",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "zero embedder dimension",
			mutate:  func(c *Config) { c.EmbedderDimension = 0 },
			wantErr: ErrInvalidEmbedderDimension,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "postgres port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 70000 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty postgres db name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "max_chunks zero",
			mutate:  func(c *Config) { c.MaxChunks = 0 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "min_similarity negative",
			mutate:  func(c *Config) { c.MinSimilarity = -0.1 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "min_similarity at one",
			mutate:  func(c *Config) { c.MinSimilarity = 1.0 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "context budget too small",
			mutate:  func(c *Config) { c.ContextBudget = 100 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "confidence threshold above one",
			mutate:  func(c *Config) { c.ConfidenceThreshold = 1.5 },
			wantErr: ErrInvalidRetrieval,
		},
		{
			name:    "cache capacity zero",
			mutate:  func(c *Config) { c.CacheCapacity = 0 },
			wantErr: ErrInvalidCache,
		},
		{
			name:    "cache ttl zero",
			mutate:  func(c *Config) { c.CacheTTL = 0 },
			wantErr: ErrInvalidCache,
		},
		{
			name:    "embed timeout zero",
			mutate:  func(c *Config) { c.EmbedTimeout = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "llm timeout negative",
			mutate:  func(c *Config) { c.LLMTimeout = -time.Second },
			wantErr: ErrInvalidTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate() on nil = %v, want ErrConfigNil", err)
	}
}

func TestConnURL(t *testing.T) {
	cfg := validConfig()
	url := cfg.ConnURL()

	if !strings.HasPrefix(url, "postgres://") {
		t.Errorf("ConnURL() = %q, want postgres:// scheme", url)
	}
	if !strings.Contains(url, "localhost:5432") {
		t.Errorf("ConnURL() = %q, want host:port", url)
	}
	if !strings.Contains(url, "sslmode=disable") {
		t.Errorf("ConnURL() = %q, want sslmode param", url)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect func(string) bool
	}{
		{
			name:   "empty stays empty",
			input:  "",
			expect: func(s string) bool { return s == "" },
		},
		{
			name:   "short secret fully masked",
			input:  "abc123",
			expect: func(s string) bool { return s == maskedValue },
		},
		{
			name:  "long secret keeps edges",
			input: "my_long_secret_key_123",
			expect: func(s string) bool {
				return strings.HasPrefix(s, "my") && strings.HasSuffix(s, "23") &&
					strings.Contains(s, maskedValue)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := maskSecret(tt.input)
			if !tt.expect(got) {
				t.Errorf("maskSecret(%q) = %q", tt.input, got)
			}
			// The raw secret must never survive masking.
			if tt.input != "" && strings.Contains(got, tt.input) {
				t.Errorf("maskSecret(%q) leaked the input: %q", tt.input, got)
			}
		})
	}
}

func TestFullModelName(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  string
	}{
		{"bare name gets qualified", "gemini-2.5-flash", "googleai/gemini-2.5-flash"},
		{"qualified name kept", "googleai/gemini-2.5-pro", "googleai/gemini-2.5-pro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.ModelName = tt.model
			if got := cfg.FullModelName(); got != tt.want {
				t.Errorf("FullModelName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigString_MasksPassword(t *testing.T) {
	cfg := validConfig()
	cfg.PostgresPassword = "super_secret_password_value"

	s := cfg.String()
	if strings.Contains(s, "super_secret_password_value") {
		t.Errorf("String() leaked the postgres password: %s", s)
	}
}
