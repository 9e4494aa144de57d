package config

import "time"

// ProviderType identifies a completion or embedding provider.
type ProviderType string

const (
	ProviderGroq   ProviderType = "groq"
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level bookqa configuration, corresponding to .bookqa.yml.
type Config struct {
	Provider               ProviderType `yaml:"provider" koanf:"provider"`
	Model                  string       `yaml:"model" koanf:"model"`
	CompressionModel       string       `yaml:"compression_model" koanf:"compression_model"`
	EmbeddingProvider      ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel         string       `yaml:"embedding_model" koanf:"embedding_model"`
	EmbeddingDimensions    int          `yaml:"embedding_dimensions" koanf:"embedding_dimensions"`
	VectorDBPath           string       `yaml:"vector_db_path" koanf:"vector_db_path"`
	HistoryDB              string       `yaml:"history_db" koanf:"history_db"`
	RetrievalK             int          `yaml:"retrieval_k" koanf:"retrieval_k"`
	CompressionConcurrency int          `yaml:"compression_concurrency" koanf:"compression_concurrency"`
	ChunkSize              int          `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap           int          `yaml:"chunk_overlap" koanf:"chunk_overlap"`
	SnippetLength          int          `yaml:"snippet_length" koanf:"snippet_length"`
	EmbedTimeoutSeconds    int          `yaml:"embed_timeout_seconds" koanf:"embed_timeout_seconds"`
	CompressTimeoutSeconds int          `yaml:"compress_timeout_seconds" koanf:"compress_timeout_seconds"`
	CompleteTimeoutSeconds int          `yaml:"complete_timeout_seconds" koanf:"complete_timeout_seconds"`
	EmbedBatchSize         int          `yaml:"embed_batch_size" koanf:"embed_batch_size"`
	IngestConcurrency      int          `yaml:"ingest_concurrency" koanf:"ingest_concurrency"`
	MaxRetries             int          `yaml:"max_retries" koanf:"max_retries"`
	RetryDelayMS           int          `yaml:"retry_delay_ms" koanf:"retry_delay_ms"`
	RequestsPerMinute      int          `yaml:"requests_per_minute" koanf:"requests_per_minute"`
	Documents              []string     `yaml:"documents" koanf:"documents"`
	Server                 ServerConfig `yaml:"server" koanf:"server"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host           string   `yaml:"host" koanf:"host"`
	Port           int      `yaml:"port" koanf:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
}

// ExtractionModel returns the model used for chunk compression.
func (c *Config) ExtractionModel() string {
	if c.CompressionModel != "" {
		return c.CompressionModel
	}
	return c.Model
}

// EmbedTimeout returns the per-call embedding timeout.
func (c *Config) EmbedTimeout() time.Duration {
	return time.Duration(c.EmbedTimeoutSeconds) * time.Second
}

// CompressTimeout returns the per-chunk extraction timeout.
func (c *Config) CompressTimeout() time.Duration {
	return time.Duration(c.CompressTimeoutSeconds) * time.Second
}

// CompleteTimeout returns the answer completion timeout.
func (c *Config) CompleteTimeout() time.Duration {
	return time.Duration(c.CompleteTimeoutSeconds) * time.Second
}

// RetryDelay returns the base backoff for embedding retries.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}
