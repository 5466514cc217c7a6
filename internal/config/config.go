package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Memory/embedding store connection
	MemoryStoreURL    string
	MemoryStoreAPIKey string
	MemoryStoreRPS    float64

	// Service auth
	APIKey string

	// Claude catalogue generation
	AnthropicAPIKey string
	AnthropicModel  string

	// Token budgeting
	CharsPerToken      float64
	ContextWindow      int
	SystemReserve      int
	FormatReserve      int
	OutputReserve      int
	HistoryReserve     int
	MaxReadTokens      int
	CatalogueMaxTokens int

	// Directory scanning
	LargeRepoThreshold int

	// Catalogue generation retry layering. Outer attempts govern whole
	// generation invocations, inner attempts govern streaming calls within
	// one invocation; total network calls can reach outer x inner, so both
	// knobs are exposed separately.
	OuterRetryCap       int
	InnerRetryCap       int
	JSONRetryCap        int
	ModelRetryCap       int
	RateLimitCeiling    int
	BackoffBase         time.Duration
	BackoffPenalty      time.Duration
	BackoffCap          time.Duration
	FirstAttemptTimeout time.Duration
	LaterAttemptTimeout time.Duration
	WriteToolCap        int

	// Ingestion
	IngestWorkers    int
	IngestRetries    int
	BreakerThreshold int
	ProgressEvery    int

	// Run state
	RunTTL time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		MemoryStoreURL:    envOr("MEMORY_STORE_URL", "http://localhost:8000"),
		MemoryStoreAPIKey: os.Getenv("MEMORY_STORE_API_KEY"),
		MemoryStoreRPS:    envFloat("MEMORY_STORE_RPS", 10),

		APIKey: os.Getenv("OPENDEEPWIKI_API_KEY"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),

		CharsPerToken:      envFloat("CHARS_PER_TOKEN", 2.5),
		ContextWindow:      envInt("CONTEXT_WINDOW", 200000),
		SystemReserve:      envInt("SYSTEM_PROMPT_RESERVE", 4000),
		FormatReserve:      envInt("FORMAT_RESERVE", 1000),
		OutputReserve:      envInt("MODEL_OUTPUT_RESERVE", 16000),
		HistoryReserve:     envInt("HISTORY_RESERVE", 8000),
		MaxReadTokens:      envInt("MAX_READ_TOKENS", 20000),
		CatalogueMaxTokens: envInt("CATALOGUE_MAX_TOKENS", 16000),

		LargeRepoThreshold: envInt("LARGE_REPO_THRESHOLD", 500),

		OuterRetryCap:       envInt("OUTER_RETRY_CAP", 5),
		InnerRetryCap:       envInt("INNER_RETRY_CAP", 3),
		JSONRetryCap:        envInt("JSON_RETRY_CAP", 8),
		ModelRetryCap:       envInt("MODEL_RETRY_CAP", 3),
		RateLimitCeiling:    envInt("RATE_LIMIT_CEILING", 5),
		BackoffBase:         envDuration("BACKOFF_BASE", 1*time.Second),
		BackoffPenalty:      envDuration("BACKOFF_PENALTY", 500*time.Millisecond),
		BackoffCap:          envDuration("BACKOFF_CAP", 60*time.Second),
		FirstAttemptTimeout: envDuration("FIRST_ATTEMPT_TIMEOUT", 20*time.Minute),
		LaterAttemptTimeout: envDuration("LATER_ATTEMPT_TIMEOUT", 5*time.Minute),
		WriteToolCap:        envInt("WRITE_TOOL_CAP", 3),

		IngestWorkers:    envInt("INGEST_WORKERS", 3),
		IngestRetries:    envInt("INGEST_RETRIES", 3),
		BreakerThreshold: envInt("BREAKER_THRESHOLD", 5),
		ProgressEvery:    envInt("PROGRESS_EVERY", 20),

		RunTTL: envDuration("RUN_TTL", 1*time.Hour),
	}

	if cfg.CharsPerToken < 1 {
		cfg.CharsPerToken = 2.5
	}
	if cfg.LargeRepoThreshold <= 0 {
		cfg.LargeRepoThreshold = 500
	}
	if cfg.OuterRetryCap < 1 {
		cfg.OuterRetryCap = 5
	}
	if cfg.InnerRetryCap < 1 {
		cfg.InnerRetryCap = 3
	}
	if cfg.IngestWorkers <= 0 {
		cfg.IngestWorkers = 3
	}
	if cfg.IngestRetries <= 0 {
		cfg.IngestRetries = 3
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 20
	}
	if cfg.WriteToolCap <= 0 {
		cfg.WriteToolCap = 3
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if c.MemoryStoreAPIKey == "" {
		return fmt.Errorf("MEMORY_STORE_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
