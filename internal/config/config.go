// Package config loads worker configuration from the environment.
// A .env file in the working directory is honored for local development;
// in deployment the variables come from the process environment.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all review-worker configuration.
type Config struct {
	// Required credentials and endpoints. Startup fails when any is absent or empty.
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY" required:"true"`
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY" required:"true"`
	DatabaseURL      string `envconfig:"DATABASE_URL" required:"true"`
	ServiceSecretKey string `envconfig:"SERVICE_SECRET_KEY" required:"true"`

	// Optional integrations.
	QStashToken string `envconfig:"QSTASH_TOKEN"`
	GitHubToken string `envconfig:"GITHUB_TOKEN"`

	// Server settings.
	Port int `envconfig:"PORT" default:"8080"`

	// Pipeline tuning.
	Embedding EmbeddingConfig
	LLM       LLMConfig
	Review    ReviewConfig
	Indexing  IndexingConfig
}

// EmbeddingConfig tunes the embedding service.
type EmbeddingConfig struct {
	Model        string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	MaxChars     int           `envconfig:"EMBEDDING_MAX_CHARS" default:"24000"`
	ChunkOverlap int           `envconfig:"EMBEDDING_CHUNK_OVERLAP" default:"500"`
	MaxRetries   int           `envconfig:"EMBEDDING_MAX_RETRIES" default:"3"`
	BaseDelay    time.Duration `envconfig:"EMBEDDING_BASE_DELAY" default:"1s"`
}

// LLMConfig tunes the analyzer.
type LLMConfig struct {
	Model        string        `envconfig:"LLM_MODEL" default:"gemini-2.0-flash"`
	MaxRetries   int           `envconfig:"LLM_MAX_RETRIES" default:"3"`
	BaseDelay    time.Duration `envconfig:"LLM_BASE_DELAY" default:"1s"`
	MaxDelay     time.Duration `envconfig:"LLM_MAX_DELAY" default:"30s"`
	Jitter       bool          `envconfig:"LLM_JITTER" default:"true"`
	CallTimeout  time.Duration `envconfig:"LLM_CALL_TIMEOUT" default:"120s"`
	MaxFailures  int           `envconfig:"LLM_BREAKER_MAX_FAILURES" default:"2"`
	ResetTimeout time.Duration `envconfig:"LLM_BREAKER_RESET" default:"5m"`
}

// ReviewConfig tunes the review orchestrator.
type ReviewConfig struct {
	MaxCommentsPerFile    int           `envconfig:"REVIEW_MAX_COMMENTS_PER_FILE" default:"10"`
	MaxCorrectionDistance int           `envconfig:"REVIEW_MAX_CORRECTION_DISTANCE" default:"5"`
	PreferChangedLines    bool          `envconfig:"REVIEW_PREFER_CHANGED_LINES" default:"true"`
	JobCacheTTL           time.Duration `envconfig:"REVIEW_JOB_CACHE_TTL" default:"5m"`
	SkipPatterns          []string      `envconfig:"REVIEW_SKIP_PATTERNS" default:"**/node_modules/**,**/dist/**,**/*.min.js,**/package-lock.json,**/*.lock"`
}

// IndexingConfig tunes the indexing orchestrator.
type IndexingConfig struct {
	BatchSize   int   `envconfig:"INDEXING_BATCH_SIZE" default:"20"`
	MaxFileSize int64 `envconfig:"INDEXING_MAX_FILE_SIZE" default:"1048576"`
}

// Load reads configuration from .env (when present) and the environment.
// Missing required variables produce an error that prevents startup.
func Load() (*Config, error) {
	// Best effort; absence of a .env file is the normal production case.
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	// envconfig only rejects unset variables; an empty value is just as unusable.
	for _, req := range []struct{ name, value string }{
		{"OPENAI_API_KEY", c.OpenAIAPIKey},
		{"GEMINI_API_KEY", c.GeminiAPIKey},
		{"DATABASE_URL", c.DatabaseURL},
		{"SERVICE_SECRET_KEY", c.ServiceSecretKey},
	} {
		if req.value == "" {
			return nil, fmt.Errorf("config: required key %s is empty", req.name)
		}
	}
	return &c, nil
}
