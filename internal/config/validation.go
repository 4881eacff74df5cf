package config

import (
	"fmt"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Model configuration
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// The pgvector schema is created with a fixed dimensionality; vectors of
	// any other size cannot be stored in the same index.
	if c.EmbedderDimension < 1 || c.EmbedderDimension > 4096 {
		return fmt.Errorf("%w: must be between 1 and 4096, got %d",
			ErrInvalidEmbedderDimension, c.EmbedderDimension)
	}

	// PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d",
			ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Retrieval budgets
	if c.MaxChunks < 1 || c.MaxChunks > 50 {
		return fmt.Errorf("%w: max_chunks must be between 1 and 50, got %d",
			ErrInvalidRetrieval, c.MaxChunks)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity >= 1 {
		return fmt.Errorf("%w: min_similarity must be in [0,1), got %.2f",
			ErrInvalidRetrieval, c.MinSimilarity)
	}
	if c.ContextBudget < 200 {
		return fmt.Errorf("%w: context_budget must be at least 200 characters, got %d",
			ErrInvalidRetrieval, c.ContextBudget)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence_threshold must be in [0,1], got %.2f",
			ErrInvalidRetrieval, c.ConfidenceThreshold)
	}
	if c.MaxQueryLen < 1 {
		return fmt.Errorf("%w: max_query_len must be positive, got %d",
			ErrInvalidRetrieval, c.MaxQueryLen)
	}

	// Cache
	if c.CacheCapacity < 1 {
		return fmt.Errorf("%w: cache_capacity must be positive, got %d",
			ErrInvalidCache, c.CacheCapacity)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("%w: cache_ttl must be positive, got %s",
			ErrInvalidCache, c.CacheTTL)
	}

	// Timeouts
	if c.EmbedTimeout <= 0 {
		return fmt.Errorf("%w: embed_timeout must be positive, got %s",
			ErrInvalidTimeout, c.EmbedTimeout)
	}
	if c.SearchTimeout <= 0 {
		return fmt.Errorf("%w: search_timeout must be positive, got %s",
			ErrInvalidTimeout, c.SearchTimeout)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("%w: llm_timeout must be positive, got %s",
			ErrInvalidTimeout, c.LLMTimeout)
	}

	return nil
}
